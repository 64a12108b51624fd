// Package logging is a thin leveled wrapper around the standard logger.
//
// Messages carry a [DEBUG], [INFO], [WARN] or [ERROR] tag and are dropped
// below the active level. The level comes from LOG_LEVEL, or debug when
// DEBUG is truthy, and SetLevel overrides it for command line tools.
package logging

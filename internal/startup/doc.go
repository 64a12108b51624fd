// Package startup loads the kiosk configuration and writes the startup
// and shutdown report.
//
// # Configuration
//
// Every setting comes from the environment; a .env file in the working
// directory fills in variables that are not set. [LoadConfig] is used by
// the server and [LoadToolConfig] by kioskctl.
//
//   - DATA_DIR: root of the data directories (default ./data)
//   - LIBRARY_DIR, CACHE_DIR, DATABASE_DIR: override the subdirectories of DATA_DIR
//   - LEGACY_ALBUMS_DIR: per-album layout to migrate (default $DATA_DIR/albums)
//   - LEGACY_ACTIVE_ALBUMS: comma separated legacy albums shown in the slideshow
//   - PORT, METRICS_PORT, METRICS_ENABLED: listeners (8080, 9090, true)
//   - STORAGE_BACKEND: sqlite or json (default sqlite)
//   - WEB_MAX_EDGE: long edge of web derivatives in pixels (default 1280)
//   - SLIDESHOW_ORDER: shuffle or date (default shuffle)
//   - CACHE_QUOTA_MB: remote cache quota (default 2048)
//   - SYNC_INTERVAL: remote sync period as a Go duration (default 60m)
//   - GEOCODER_ENABLED, GEOCODER_URL, GEOCODER_LANGUAGE: reverse geocoding
//   - PHOTOPRISM_URL, PHOTOPRISM_USER, PHOTOPRISM_PASS, PHOTOPRISM_ALBUM: remote source
//   - DERIVATIVE_WORKERS: concurrent image jobs (default derived from CPUs)
//   - LOG_LEVEL, DEBUG, LOG_HEALTH_CHECKS: logging
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: Go memory limit
//
// Invalid values fall back to their defaults with a warning, except
// STORAGE_BACKEND, which is fatal.
package startup

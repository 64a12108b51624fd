// Package remotesync pulls photos from an external photo source into the
// remote cache.
//
// A sync run lists the source, downloads every item whose medium variant
// is not cached yet, renders the thumbnail and medium variants, stores
// them with the item's metadata and finally evicts the oldest entries
// until the cache fits its byte quota. A Scheduler repeats the run on an
// interval.
package remotesync

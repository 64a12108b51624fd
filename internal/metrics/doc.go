// Package metrics provides Prometheus instrumentation for the photo kiosk.
//
// All metrics are registered through promauto at package init and are
// prefixed with "photo_kiosk_". They fall into these groups:
//
//   - HTTP: request counts, durations and in-flight requests
//   - Document store: per-backend operation counts and latency, SQLite file sizes
//   - Library: upload outcomes, media counts, edits, album counts
//   - Derivatives: generation counts and duration per variant, decoder usage
//   - Metadata: EXIF extraction outcomes and reverse geocoding lookups
//   - Remote cache: bytes, entries, evictions and sync runs
//   - Migration: migrated and failed files, converted albums
//   - Filesystem: operation latency and stale-handle retries per volume
//   - Memory: heap usage ratio and backpressure pauses
//
// Gauges that summarise stored state are refreshed by a Collector which
// polls a StatsProvider on an interval. InitializeMetrics pre-creates label
// combinations so dashboards see zero values before the first event.
package metrics

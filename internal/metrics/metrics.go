package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_kiosk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Document store metrics
var (
	DocStoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_docstore_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	DocStoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_kiosk_docstore_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Library metrics
var (
	LibraryUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_library_uploads_total",
			Help: "Total number of library uploads by outcome",
		},
		[]string{"status"}, // created, duplicate, error
	)

	LibraryMediaTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_library_media_total",
			Help: "Number of library entries by media type",
		},
		[]string{"type"},
	)

	LibraryBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_library_bytes",
			Help: "Total size of library originals in bytes",
		},
	)

	LibraryEditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_library_edits_total",
			Help: "Total number of edit operations",
		},
		[]string{"operation", "status"}, // rotate, crop, reset
	)

	AlbumsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_albums_total",
			Help: "Number of albums",
		},
	)

	AlbumsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_albums_active",
			Help: "Number of albums in the slideshow rotation",
		},
	)
)

// Derivative metrics
var (
	DerivativeGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_derivative_generations_total",
			Help: "Total number of derivative generations",
		},
		[]string{"variant", "status"},
	)

	DerivativeGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_kiosk_derivative_generation_duration_seconds",
			Help:    "Derivative generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"variant"},
	)

	DerivativeDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_derivative_decode_total",
			Help: "Images decoded for derivative generation by source format",
		},
		[]string{"format", "decoder"},
	)

	WorkerPoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_worker_pool_in_use",
			Help: "Number of worker pool slots currently held",
		},
	)
)

// Metadata metrics
var (
	MetadataExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_metadata_extractions_total",
			Help: "Total number of EXIF extractions",
		},
		[]string{"status"}, // success, no_exif, error
	)

	GeocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_geocode_lookups_total",
			Help: "Total number of reverse geocoding lookups",
		},
		[]string{"result"}, // hit, miss, error, rate_limited
	)

	GeocodeLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_kiosk_geocode_lookup_duration_seconds",
			Help:    "Reverse geocoding request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)
)

// Remote cache metrics
var (
	RemoteCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_remote_cache_bytes",
			Help: "Bytes on disk held by the remote photo cache",
		},
	)

	RemoteCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_remote_cache_entries",
			Help: "Number of remote photos with cached metadata",
		},
	)

	RemoteCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_kiosk_remote_cache_evictions_total",
			Help: "Total number of remote photos evicted",
		},
	)

	RemoteCacheEvictedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_kiosk_remote_cache_evicted_bytes_total",
			Help: "Total number of bytes freed by eviction",
		},
	)

	RemoteSyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_remote_sync_runs_total",
			Help: "Total number of remote sync runs",
		},
		[]string{"status"},
	)

	RemoteSyncDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_remote_sync_downloads_total",
			Help: "Total number of remote photo downloads",
		},
		[]string{"status"},
	)

	RemoteSyncLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_remote_sync_last_run_timestamp",
			Help: "Timestamp of the last remote sync run",
		},
	)

	RemoteSyncRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_remote_sync_running",
			Help: "Whether a remote sync is in progress (1 = running, 0 = idle)",
		},
	)
)

// Migration metrics
var (
	MigrationFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_migration_files_total",
			Help: "Files processed by the legacy album migration",
		},
		[]string{"status"}, // migrated, failed
	)

	MigrationAlbumsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_kiosk_migration_albums_total",
			Help: "Legacy albums converted by the migration",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_kiosk_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_kiosk_filesystem_retry_events_total",
			Help: "Stale file handle retry steps by event (stale, backoff, recovered, exhausted)",
		},
		[]string{"volume", "operation", "event"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_kiosk_filesystem_retry_duration_seconds",
			Help:    "Wall time of stat and open calls including stale handle retries",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"volume", "operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_memory_paused",
			Help: "Whether image processing is paused for memory (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_kiosk_memory_gc_pauses_total",
			Help: "Number of times processing paused for memory pressure",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_kiosk_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo records build information as a constant gauge.
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

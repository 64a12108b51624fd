package metrics

import "photo-kiosk/internal/filesystem"

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"created", "duplicate", "error"} {
		LibraryUploadsTotal.WithLabelValues(status)
	}
	for _, t := range []string{"image", "video"} {
		LibraryMediaTotal.WithLabelValues(t)
	}
	for _, op := range []string{"rotate", "crop", "reset"} {
		LibraryEditsTotal.WithLabelValues(op, "success")
		LibraryEditsTotal.WithLabelValues(op, "error")
	}

	for _, v := range []string{"web", "thumbnail", "remote_thumbnail", "remote_medium"} {
		DerivativeGenerationsTotal.WithLabelValues(v, "success")
		DerivativeGenerationsTotal.WithLabelValues(v, "error")
		DerivativeGenerationDuration.WithLabelValues(v)
	}

	for _, s := range []string{"success", "no_exif", "error"} {
		MetadataExtractionsTotal.WithLabelValues(s)
	}
	for _, r := range []string{"hit", "miss", "error", "rate_limited"} {
		GeocodeLookupsTotal.WithLabelValues(r)
	}

	for _, s := range []string{"success", "error"} {
		RemoteSyncRunsTotal.WithLabelValues(s)
		RemoteSyncDownloadsTotal.WithLabelValues(s)
	}
	for _, s := range []string{"migrated", "failed"} {
		MigrationFilesTotal.WithLabelValues(s)
	}

	for _, backend := range []string{"sqlite", "json"} {
		for _, op := range []string{"load", "save", "delete", "keys"} {
			DocStoreOpsTotal.WithLabelValues(backend, op, "success")
			DocStoreOpsTotal.WithLabelValues(backend, op, "error")
			DocStoreOpDuration.WithLabelValues(backend, op)
		}
	}

	for _, vol := range []string{"data", "library", "cache", "database", "unknown"} {
		for _, op := range []string{"write", "rename"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryDuration.WithLabelValues(vol, op)
			for _, ev := range filesystem.RetryEvents {
				FilesystemRetryEvents.WithLabelValues(vol, op, string(ev))
			}
		}
	}
}

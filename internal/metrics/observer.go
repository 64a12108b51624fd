package metrics

import (
	"time"

	"photo-kiosk/internal/filesystem"
)

// FilesystemObserver feeds filesystem.Instrument.
type FilesystemObserver struct{}

var _ filesystem.Observer = FilesystemObserver{}

func (FilesystemObserver) Operation(volume, op string, took time.Duration, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, op).Observe(took.Seconds())
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, op).Inc()
	}
}

func (FilesystemObserver) Retry(volume, op string, event filesystem.RetryEvent) {
	FilesystemRetryEvents.WithLabelValues(volume, op, string(event)).Inc()
}

func (FilesystemObserver) RetryDone(volume, op string, took time.Duration) {
	FilesystemRetryDuration.WithLabelValues(volume, op).Observe(took.Seconds())
}

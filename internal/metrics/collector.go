package metrics

import (
	"context"
	"time"

	"photo-kiosk/internal/logging"
)

// StatsProvider reports the current size of the kiosk's stores.
type StatsProvider interface {
	GetStats() Stats
}

// StatsProviderFunc adapts a function to StatsProvider.
type StatsProviderFunc func() Stats

func (f StatsProviderFunc) GetStats() Stats { return f() }

// Stats is a snapshot of the library, albums and remote cache.
type Stats struct {
	TotalImages        int
	TotalVideos        int
	LibraryBytes       int64
	TotalAlbums        int
	ActiveAlbums       int
	RemoteCacheEntries int
	RemoteCacheBytes   int64
}

// publish copies the snapshot into the store gauges.
func (s Stats) publish() {
	LibraryMediaTotal.WithLabelValues("image").Set(float64(s.TotalImages))
	LibraryMediaTotal.WithLabelValues("video").Set(float64(s.TotalVideos))
	LibraryBytesTotal.Set(float64(s.LibraryBytes))
	AlbumsTotal.Set(float64(s.TotalAlbums))
	AlbumsActive.Set(float64(s.ActiveAlbums))
	RemoteCacheEntries.Set(float64(s.RemoteCacheEntries))
	RemoteCacheBytes.Set(float64(s.RemoteCacheBytes))
}

// Collector refreshes the store gauges from a StatsProvider. Store sizes
// change rarely, so they are polled rather than updated on every write.
type Collector struct {
	source   StatsProvider
	interval time.Duration
}

func NewCollector(source StatsProvider, interval time.Duration) *Collector {
	return &Collector{source: source, interval: interval}
}

// Run collects once right away and then every interval until ctx ends.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		c.collect()
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) collect() {
	if c.source == nil {
		return
	}
	s := c.source.GetStats()
	s.publish()
	logging.Debug("Store gauges: %d images, %d videos, %d albums (%d active), %d cached remote photos",
		s.TotalImages, s.TotalVideos, s.TotalAlbums, s.ActiveAlbums, s.RemoteCacheEntries)
}

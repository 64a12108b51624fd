package remotesync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decode config of rendered variants
	"sync"
	"sync/atomic"
	"time"

	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/media"
	"photo-kiosk/internal/metrics"
	"photo-kiosk/internal/remotecache"
	"photo-kiosk/internal/workers"
)

// ErrAlreadyRunning is returned when a run is requested while one is active.
var ErrAlreadyRunning = errors.New("remote sync already running")

const variantQuality = 85

// Cache is the part of the remote cache a sync run needs.
type Cache interface {
	Exists(externalID string, v remotecache.Variant) bool
	Save(ctx context.Context, externalID string, data []byte, v remotecache.Variant, md *remotecache.Metadata) error
	Evict(ctx context.Context, quota int64) (remotecache.EvictionResult, error)
}

// RunRecorder persists the time of the last finished run.
type RunRecorder interface {
	SetLastSyncRun(ctx context.Context, t time.Time) error
}

// Config wires a Syncer.
type Config struct {
	Source     Source
	Cache      Cache
	Pool       *workers.Pool
	QuotaBytes int64
	Recorder   RunRecorder
}

// Result summarizes one run.
type Result struct {
	Listed     int                        `json:"listed"`
	Skipped    int                        `json:"skipped"`
	Downloaded int                        `json:"downloaded"`
	Failed     int                        `json:"failed"`
	Eviction   remotecache.EvictionResult `json:"eviction"`
	Duration   time.Duration              `json:"duration"`
}

// Syncer copies source photos into the cache. At most one run is active.
type Syncer struct {
	cfg     Config
	running atomic.Bool
}

// New creates a Syncer.
func New(cfg Config) *Syncer {
	if cfg.Pool == nil {
		cfg.Pool = workers.NewPool(workers.ForIO(4), nil)
	}
	return &Syncer{cfg: cfg}
}

// Running reports whether a run is in progress.
func (s *Syncer) Running() bool { return s.running.Load() }

// Run performs one sync pass. A failing source fails the run; a failing
// item is logged and counted.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	metrics.RemoteSyncRunning.Set(1)
	defer metrics.RemoteSyncRunning.Set(0)

	start := time.Now()
	result, err := s.run(ctx)
	result.Duration = time.Since(start)

	if err != nil {
		metrics.RemoteSyncRunsTotal.WithLabelValues("error").Inc()
		logging.Error("Remote sync failed after %v: %v", result.Duration, err)
		return result, err
	}

	metrics.RemoteSyncRunsTotal.WithLabelValues("success").Inc()
	metrics.RemoteSyncLastRunTimestamp.Set(float64(time.Now().Unix()))
	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.SetLastSyncRun(ctx, time.Now()); err != nil {
			logging.Warn("Failed to record sync run: %v", err)
		}
	}

	logging.Info("Remote sync finished in %v: %d listed, %d downloaded, %d skipped, %d failed, %d evicted",
		result.Duration, result.Listed, result.Downloaded, result.Skipped, result.Failed, len(result.Eviction.Evicted))
	return result, nil
}

func (s *Syncer) run(ctx context.Context) (*Result, error) {
	result := &Result{}

	items, err := s.cfg.Source.List(ctx)
	if err != nil {
		return result, err
	}
	result.Listed = len(items)

	var missing []Item
	for _, item := range items {
		if item.ID == "" || s.cfg.Cache.Exists(item.ID, remotecache.VariantMedium) {
			result.Skipped++
			continue
		}
		missing = append(missing, item)
	}
	logging.Debug("Remote sync: %d of %d items need downloading", len(missing), len(items))

	var mu sync.Mutex
	err = workers.Each(ctx, s.cfg.Pool, missing,
		func(item Item) error {
			if err := s.fetch(ctx, item); err != nil {
				return err
			}
			mu.Lock()
			result.Downloaded++
			mu.Unlock()
			metrics.RemoteSyncDownloadsTotal.WithLabelValues("success").Inc()
			return nil
		},
		func(item Item, err error) {
			mu.Lock()
			result.Failed++
			mu.Unlock()
			metrics.RemoteSyncDownloadsTotal.WithLabelValues("error").Inc()
			logging.Warn("Remote sync: %s failed: %v", item.ID, err)
		},
	)
	if err != nil {
		return result, err
	}

	eviction, err := s.cfg.Cache.Evict(ctx, s.cfg.QuotaBytes)
	if err != nil {
		return result, fmt.Errorf("eviction failed: %w", err)
	}
	result.Eviction = eviction
	return result, nil
}

// fetch downloads one item and stores its thumbnail and medium variants.
// The medium variant is written last, so its presence marks a complete item.
func (s *Syncer) fetch(ctx context.Context, item Item) error {
	data, err := s.cfg.Source.Download(ctx, item)
	if err != nil {
		return err
	}

	thumb, err := media.ResizeJPEG(data, remotecache.VariantThumbnail.MaxEdge(), variantQuality)
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	medium, err := media.ResizeJPEG(data, remotecache.VariantMedium.MaxEdge(), variantQuality)
	if err != nil {
		return fmt.Errorf("medium: %w", err)
	}

	md := item.Metadata
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(medium)); err == nil {
		md.Width, md.Height = cfg.Width, cfg.Height
	}

	if err := s.cfg.Cache.Save(ctx, item.ID, thumb, remotecache.VariantThumbnail, nil); err != nil {
		return err
	}
	return s.cfg.Cache.Save(ctx, item.ID, medium, remotecache.VariantMedium, &md)
}

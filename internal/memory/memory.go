package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

// Config controls when derivative work backs off.
type Config struct {
	// MemoryLimitBytes is the soft limit; 0 falls back to GOMEMLIMIT.
	MemoryLimitBytes int64

	// HighWaterMark is the usage fraction at which ShouldThrottle reports
	// true and below which a paused monitor resumes.
	HighWaterMark float64

	// CriticalWaterMark is the usage fraction that pauses image work.
	CriticalWaterMark float64

	CheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples the Go heap and holds image work while it sits above the
// critical mark. A nil *Monitor never pauses.
type Monitor struct {
	cfg   Config
	limit int64

	sample func() uint64

	mu    sync.RWMutex
	alloc uint64
	gate  chan struct{} // non-nil while paused, closed on resume

	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewMonitor(cfg Config) *Monitor {
	limit := cfg.MemoryLimitBytes
	if limit == 0 {
		limit = goMemLimit()
	}
	if limit > 0 {
		logging.Info("Memory monitor: limit %s, pause at %.0f%%, resume below %.0f%%",
			formatBytes(limit), cfg.CriticalWaterMark*100, cfg.HighWaterMark*100)
	} else {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		cfg:    cfg,
		limit:  limit,
		sample: heapAlloc,
		done:   make(chan struct{}),
	}
}

// goMemLimit reads the runtime limit without changing it; the runtime reports
// math.MaxInt64 when none is set.
func goMemLimit() int64 {
	if v := debug.SetMemoryLimit(-1); v > 0 && v < math.MaxInt64 {
		return v
	}
	return 0
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc
}

// Start samples in the background until Stop. Without a limit there is
// nothing to compare against, so it does nothing.
func (m *Monitor) Start() {
	if m == nil || m.limit == 0 {
		return
	}
	m.startOnce.Do(func() {
		go func() {
			tick := time.NewTicker(m.cfg.CheckInterval)
			defer tick.Stop()
			for {
				select {
				case <-m.done:
					return
				case <-tick.C:
					m.check()
				}
			}
		}()
	})
}

// Stop ends sampling. Callers blocked in WaitIfPaused are released.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Monitor) ratio(alloc uint64) float64 {
	return float64(alloc) / float64(m.limit)
}

func (m *Monitor) check() {
	alloc := m.sample()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.alloc = alloc
	if m.limit <= 0 {
		return
	}
	usage := m.ratio(alloc)
	metrics.MemoryUsageRatio.Set(usage)

	paused := m.gate != nil
	if !paused && usage >= m.cfg.CriticalWaterMark {
		logging.Warn("Memory at %.1f%% of %s, pausing image processing", usage*100, formatBytes(m.limit))
		m.gate = make(chan struct{})
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
		return
	}
	if paused && usage < m.cfg.HighWaterMark {
		logging.Info("Memory back to %.1f%%, resuming image processing", usage*100)
		close(m.gate)
		m.gate = nil
		metrics.MemoryPaused.Set(0)
	}
}

// WaitIfPaused blocks while the monitor is paused. It returns nil once work
// may proceed (including after Stop) and ctx.Err() if ctx ends first.
func (m *Monitor) WaitIfPaused(ctx context.Context) error {
	if m == nil {
		return ctx.Err()
	}
	m.mu.RLock()
	gate := m.gate
	m.mu.RUnlock()
	if gate == nil {
		return ctx.Err()
	}

	select {
	case <-gate:
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ShouldThrottle reports usage at or above the high water mark.
func (m *Monitor) ShouldThrottle() bool {
	return m.Usage() >= m.highMark()
}

func (m *Monitor) highMark() float64 {
	if m == nil || m.limit == 0 {
		return math.Inf(1)
	}
	return m.cfg.HighWaterMark
}

func (m *Monitor) IsPaused() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gate != nil
}

// Usage is the last sampled heap size as a fraction of the limit, or 0
// without a limit.
func (m *Monitor) Usage() float64 {
	if m == nil || m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ratio(m.alloc)
}

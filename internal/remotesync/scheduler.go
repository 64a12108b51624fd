package remotesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"photo-kiosk/internal/logging"
)

// DefaultInterval is the time between scheduled runs.
const DefaultInterval = 60 * time.Minute

// Runner performs one sync pass.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// Scheduler runs a sync at start and then on every interval tick until its
// context is cancelled or Stop is called.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}

	mu         sync.Mutex
	lastResult *Result
	lastErr    error
	lastRun    time.Time
}

// NewScheduler creates a scheduler. A non-positive interval selects
// DefaultInterval.
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background loop. Only the first call has an effect.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	logging.Info("Remote sync scheduled every %v", s.interval)
	go s.loop(ctx)
}

// Stop ends the loop and waits for a run in progress to return. A
// scheduler that was never started returns at once and will not start
// later.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.CompareAndSwap(false, true) {
		return
	}
	<-s.done
}

// Trigger starts an unscheduled run in the background. It is a no-op when a
// run is already active.
func (s *Scheduler) Trigger(ctx context.Context) {
	go s.runOnce(ctx)
}

// Last returns the outcome of the most recent run.
func (s *Scheduler) Last() (time.Time, *Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastResult, s.lastErr
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Scheduled remote sync triggered")
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.Run(ctx)
	if errors.Is(err, ErrAlreadyRunning) {
		logging.Debug("Remote sync skipped: already running")
		return
	}
	if err != nil && ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastResult = result
	s.lastErr = err
	s.mu.Unlock()
}

package workers

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"photo-kiosk/internal/metrics"
)

// Throttle blocks image work while the process is under memory pressure.
// *memory.Monitor satisfies it.
type Throttle interface {
	WaitIfPaused(ctx context.Context) error
}

// Pool bounds how many image decodes and encodes run at once. Uploads, edits,
// regeneration and remote sync all share one Pool so their combined memory
// stays predictable.
type Pool struct {
	sem      *semaphore.Weighted
	size     int
	throttle Throttle
}

// NewPool returns a pool with size slots. A nil throttle disables memory
// backpressure.
func NewPool(size int, throttle Throttle) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(size)),
		size:     size,
		throttle: throttle,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Do runs fn once a slot is free and memory pressure allows it.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if p.throttle != nil {
		if err := p.throttle.WaitIfPaused(ctx); err != nil {
			return err
		}
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire worker slot: %w", err)
	}
	metrics.WorkerPoolInUse.Inc()
	defer func() {
		metrics.WorkerPoolInUse.Dec()
		p.sem.Release(1)
	}()
	return fn()
}

// Each runs fn for every item through the pool and waits for all of them.
// Item errors are passed to onError and do not stop the batch; the returned
// error is non-nil only when ctx ends.
func Each[T any](ctx context.Context, p *Pool, items []T, fn func(T) error, onError func(T, error)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := p.Do(gctx, func() error { return fn(item) })
			if err != nil && gctx.Err() == nil && onError != nil {
				onError(item, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

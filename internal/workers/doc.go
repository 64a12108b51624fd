/*
Package workers sizes and bounds concurrent image work.

Count, ForCPU, ForIO and ForMixed derive a worker count from GOMAXPROCS,
which Go sets from the container CPU limit, rather than runtime.NumCPU,
which reports host CPUs. DERIVATIVE_WORKERS overrides the computed value.

	pool := workers.NewPool(workers.ForMixed(8), monitor)

	err := pool.Do(ctx, func() error {
	    return generator.Generate(path, name, edits)
	})

Pool is a weighted semaphore: Do waits for a free slot and, when a memory
Throttle is installed, for memory pressure to clear. Each fans a batch out
through the pool and reports per-item failures without aborting the batch.
*/
package workers

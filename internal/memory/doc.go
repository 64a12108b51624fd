// Package memory keeps image processing inside the container's memory
// budget.
//
// ConfigureFromEnv derives GOMEMLIMIT from MEMORY_LIMIT (bytes, typically
// from the Kubernetes Downward API) and MEMORY_RATIO, unless GOMEMLIMIT is
// already set. Call it first thing in main.
//
// Monitor samples the heap on an interval. When allocation crosses the
// critical water mark it pauses: WaitIfPaused blocks callers (the derivative
// worker pool) until usage drops below the high water mark again.
package memory

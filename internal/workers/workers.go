package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv pins the worker count for every profile when set to a
// positive integer.
const OverrideEnv = "DERIVATIVE_WORKERS"

// Profile scales GOMAXPROCS to a worker count. Image decoding is CPU
// bound, downloads are I/O bound and ingest is a mix of both.
type Profile float64

const (
	CPUBound Profile = 1.0
	Mixed    Profile = 1.5
	IOBound  Profile = 2.0
)

// Count returns the worker count for profile, at least one and at most
// limit when limit is positive. GOMAXPROCS already reflects container CPU
// quotas.
func Count(profile Profile, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * float64(profile))
	if pinned, err := strconv.Atoi(os.Getenv(OverrideEnv)); err == nil && pinned > 0 {
		n = pinned
	}
	n = max(n, 1)
	if limit > 0 {
		n = min(n, limit)
	}
	return n
}

// ForCPU, ForMixed and ForIO are Count for the matching profile.
func ForCPU(limit int) int { return Count(CPUBound, limit) }

func ForMixed(limit int) int { return Count(Mixed, limit) }

func ForIO(limit int) int { return Count(IOBound, limit) }

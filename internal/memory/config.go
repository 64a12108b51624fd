package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"photo-kiosk/internal/logging"
)

// DefaultMemoryRatio is the share of MEMORY_LIMIT handed to the Go heap.
// libvips buffers and goroutine stacks live in the rest.
const DefaultMemoryRatio = 0.85

// ConfigResult describes what ConfigureFromEnv did.
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv derives the Go soft memory limit from the container
// limit. It must run before large allocations.
//
//   - GOMEMLIMIT, when set, is left to the runtime and only reported
//   - MEMORY_LIMIT is the container limit in bytes
//   - MEMORY_RATIO is its share for the heap, in (0, 1]
func ConfigureFromEnv() ConfigResult {
	return configure(os.Getenv, debug.SetMemoryLimit)
}

func configure(getenv func(string) string, setLimit func(int64) int64) ConfigResult {
	if v := getenv("GOMEMLIMIT"); v != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		res := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			res.Configured, res.GoMemLimit = true, limit
		}
		return res
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT alone")
		return ConfigResult{Source: "none"}
	}
	container, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || container <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", raw)
		return ConfigResult{Source: "none"}
	}

	ratio := heapRatio(getenv("MEMORY_RATIO"))
	limit := int64(float64(container) * ratio)
	setLimit(limit)
	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(limit), ratio*100, formatBytes(container))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: container,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func heapRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("Ignoring MEMORY_RATIO %q, want a number in (0, 1], using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

// formatBytes renders b with binary units, e.g. "1.5 GiB".
func formatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v, unit := float64(b)/1024, 0
	for v >= 1024 && unit < 5 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %ciB", v, "KMGTPE"[unit])
}

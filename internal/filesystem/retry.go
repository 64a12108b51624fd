package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"photo-kiosk/internal/logging"
)

const unknownVolume = "unknown"

// VolumeResolver labels paths with the name of the configured directory
// that contains them. The deepest matching directory wins, so a cache
// nested inside the data directory is still reported as "cache".
type VolumeResolver struct {
	roots []volumeRoot
}

type volumeRoot struct {
	prefix string
	name   string
}

// NewVolumeResolver builds a resolver from volume name to directory.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{}
	for name, dir := range volumes {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		vr.roots = append(vr.roots, volumeRoot{prefix: strings.TrimSuffix(dir, "/") + "/", name: name})
	}
	slices.SortFunc(vr.roots, func(a, b volumeRoot) int {
		return len(b.prefix) - len(a.prefix)
	})
	return vr
}

// Resolve returns the label for path, or "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unknownVolume
	}
	abs += "/"
	for _, root := range vr.roots {
		if strings.HasPrefix(abs, root.prefix) {
			return root.name
		}
	}
	return unknownVolume
}

// RetryConfig bounds the stale handle retry loop.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig allows three retries starting at 50ms, capped at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c RetryConfig) next(backoff time.Duration) time.Duration {
	return min(backoff*2, c.MaxBackoff)
}

// isStale reports whether err is an NFS stale file handle.
func isStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// withRetry calls fn until it succeeds, returns an error other than ESTALE,
// or MaxRetries extra attempts have been spent.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	obs, volume := observer(path)
	emit := func(event RetryEvent) {
		if obs != nil {
			obs.Retry(volume, op, event)
		}
	}
	if obs != nil {
		defer func(start time.Time) { obs.RetryDone(volume, op, time.Since(start)) }(time.Now())
	}

	backoff := config.InitialBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		switch {
		case err == nil:
			if attempt > 0 {
				logging.Info("%s of %s recovered after %d stale handle retries", op, path, attempt)
				emit(RetryRecovered)
			}
			return nil
		case !isStale(err):
			return err
		}

		emit(RetryStale)
		if attempt == config.MaxRetries {
			break
		}
		emit(RetryBackoff)
		logging.Debug("stale handle on %s of %s, attempt %d/%d, waiting %v",
			op, path, attempt+1, config.MaxRetries, backoff)
		time.Sleep(backoff)
		backoff = config.next(backoff)
	}

	logging.Warn("%s of %s still stale after %d retries: %v", op, path, config.MaxRetries, err)
	emit(RetryExhausted)
	return err
}

// StatWithRetry is os.Stat with stale handle retries.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() (err error) {
		info, err = os.Stat(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// OpenWithRetry is os.Open with stale handle retries.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var f *os.File
	err := withRetry("open", path, config, func() (err error) {
		f, err = os.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

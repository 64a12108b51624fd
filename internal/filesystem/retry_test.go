package filesystem

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	ops    []string
	events map[RetryEvent]int
	loops  int
}

func (r *recordingObserver) Operation(volume, op string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, volume+":"+op)
}

func (r *recordingObserver) Retry(_, _ string, event RetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event]++
}

func (r *recordingObserver) RetryDone(string, string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loops++
}

func installObserver(t *testing.T, volumes map[string]string) *recordingObserver {
	t.Helper()
	obs := &recordingObserver{events: map[RetryEvent]int{}}
	Instrument(obs, NewVolumeResolver(volumes))
	t.Cleanup(func() { Instrument(nil, nil) })
	return obs
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsStale(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStale(tt.err); got != tt.want {
				t.Errorf("isStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"library":  "/data/library",
		"cache":    "/data/cache",
		"database": "/data/db",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"library root", "/data/library", "library"},
		{"library original", "/data/library/abc.jpg", "library"},
		{"library derivative", "/data/library/web/abc.jpg", "library"},
		{"cache photo", "/data/cache/photos/0a1b_medium.jpg", "cache"},
		{"database WAL", "/data/db/kiosk.db-wal", "database"},
		{"sibling prefix is not a match", "/data/library2/abc.jpg", "unknown"},
		{"unknown path", "/etc/hosts", "unknown"},
		{"root path", "/", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"cache":      "/cache",
		"thumbnails": "/cache/thumbnails",
	})

	if got := vr.Resolve("/cache/photos/a.jpg"); got != "cache" {
		t.Errorf("Resolve(photos) = %q, want cache", got)
	}
	if got := vr.Resolve("/cache/thumbnails/a.jpg"); got != "thumbnails" {
		t.Errorf("Resolve(thumbnails) = %q, want thumbnails", got)
	}
}

func TestVolumeResolver_Nil(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil Resolve = %q, want unknown", got)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size = %d, want 4", info.Size())
	}

	if _, err := StatWithRetry(filepath.Join(dir, "missing"), fastRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()
}

func TestWithRetry_StaleThenSuccess(t *testing.T) {
	obs := installObserver(t, nil)

	calls := 0
	err := withRetry("stat", "/x", fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return syscall.ESTALE
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.events[RetryStale] != 2 || obs.events[RetryBackoff] != 2 || obs.events[RetryRecovered] != 1 {
		t.Errorf("observer events = %v, want 2 stale, 2 backoff, 1 recovered", obs.events)
	}
	if obs.loops != 1 {
		t.Errorf("RetryDone calls = %d, want 1", obs.loops)
	}
}

func TestWithRetry_Exhausted(t *testing.T) {
	obs := installObserver(t, nil)

	calls := 0
	err := withRetry("open", "/x", fastRetryConfig(), func() error {
		calls++
		return syscall.ESTALE
	})
	if err != syscall.ESTALE {
		t.Errorf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if obs.events[RetryExhausted] != 1 || obs.events[RetryStale] != 4 || obs.events[RetryBackoff] != 3 {
		t.Errorf("observer events = %v, want 4 stale, 3 backoff, 1 exhausted", obs.events)
	}
}

func TestWithRetry_NonStaleNotRetried(t *testing.T) {
	calls := 0
	err := withRetry("stat", "/x", fastRetryConfig(), func() error {
		calls++
		return os.ErrPermission
	})
	if err != os.ErrPermission {
		t.Errorf("withRetry() error = %v, want ErrPermission", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_NoObserver(t *testing.T) {
	Instrument(nil, nil)
	calls := 0
	err := withRetry("stat", "/x", fastRetryConfig(), func() error {
		calls++
		if calls == 1 {
			return syscall.ESTALE
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("withRetry() = %v after %d calls, want nil after 2", err, calls)
	}
}

func TestRetryConfigNextCapsBackoff(t *testing.T) {
	c := RetryConfig{MaxBackoff: 300 * time.Millisecond}
	if got := c.next(100 * time.Millisecond); got != 200*time.Millisecond {
		t.Errorf("next(100ms) = %v, want 200ms", got)
	}
	if got := c.next(200 * time.Millisecond); got != 300*time.Millisecond {
		t.Errorf("next(200ms) = %v, want 300ms", got)
	}
}

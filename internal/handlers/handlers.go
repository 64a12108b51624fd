package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"photo-kiosk/internal/album"
	"photo-kiosk/internal/library"
	"photo-kiosk/internal/remotecache"
	"photo-kiosk/internal/remotesync"
)

// RemoteSync starts sync runs in the background and reports the last one.
type RemoteSync interface {
	Trigger(ctx context.Context)
	Last() (time.Time, *remotesync.Result, error)
}

// Config wires the handlers to the stores.
type Config struct {
	Library *library.Store
	Albums  *album.Store
	Cache   *remotecache.Cache
	// Sync is nil when no remote source is configured.
	Sync RemoteSync
	// MaxUploadMemory is the multipart memory budget; larger uploads spill
	// to temporary files.
	MaxUploadMemory int64
}

type Handlers struct {
	library *library.Store
	albums  *album.Store
	cache   *remotecache.Cache
	sync    RemoteSync

	maxUploadMemory int64
	startTime       time.Time
	ready           atomic.Bool
}

func New(cfg Config) *Handlers {
	if cfg.MaxUploadMemory <= 0 {
		cfg.MaxUploadMemory = 32 << 20
	}
	return &Handlers{
		library:         cfg.Library,
		albums:          cfg.Albums,
		cache:           cfg.Cache,
		sync:            cfg.Sync,
		maxUploadMemory: cfg.MaxUploadMemory,
		startTime:       time.Now(),
	}
}

// SetReady marks startup work (migration) as finished.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RequireReady rejects requests that change state with 503 until SetReady.
// Startup migration decides whether to run by looking at the library, so
// nothing may be stored before it has finished.
func (h *Handlers) RequireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || h.ready.Load() {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, "starting up, try again shortly", http.StatusServiceUnavailable)
	})
}

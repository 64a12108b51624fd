package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photo-kiosk/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Photos       int    `json:"photos"`
	Albums       int    `json:"albums"`
	ActiveAlbums int    `json:"activeAlbums"`
	RemoteCached int    `json:"remoteCached"`
	LastSync     string `json:"lastSync,omitempty"`
	SyncError    string `json:"syncError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. A failed last
// sync degrades the status but keeps the service healthy for probes.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()
	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Photos:       h.library.Len(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	response.Status = statusHealthy
	if !ready {
		response.Status = statusStarting
	}

	if total, active, err := h.albums.Counts(r.Context()); err == nil {
		response.Albums, response.ActiveAlbums = total, active
	} else {
		response.Status = statusDegraded
	}
	if stats, err := h.cache.Stats(); err == nil {
		response.RemoteCached = stats.Entries
	}
	if h.sync != nil {
		at, _, err := h.sync.Last()
		if !at.IsZero() {
			response.LastSync = at.UTC().Format(time.RFC3339)
		}
		if err != nil {
			response.SyncError = err.Error()
			if ready {
				response.Status = statusDegraded
			}
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, response)
}

// LivenessCheck answers 200 whenever the process can serve HTTP. HEAD
// requests get headers only.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// GetVersion reports the build the server was compiled from.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, startup.GetBuildInfo())
}

// MetricsHandler exposes the default Prometheus registry, including the
// scrape counters promhttp keeps about itself.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	)
}

package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"photo-kiosk/internal/remotecache"
	"photo-kiosk/internal/remotesync"
)

// RemotePhoto is a cached remote photo with its locators.
type RemotePhoto struct {
	remotecache.Entry
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	URL          string `json:"url,omitempty"`
}

// SyncStatus describes the last remote sync run.
type SyncStatus struct {
	Enabled bool               `json:"enabled"`
	LastRun string             `json:"lastRun,omitempty"`
	Result  *remotesync.Result `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func remoteURL(id string, v remotecache.Variant) string {
	return "/api/remote/photos/" + url.PathEscape(id) + "/" + string(v)
}

// ListRemotePhotos lists cached remote photos, most recently cached first.
func (h *Handlers) ListRemotePhotos(w http.ResponseWriter, _ *http.Request) {
	entries := h.cache.List()
	out := make([]RemotePhoto, 0, len(entries))
	for _, e := range entries {
		rp := RemotePhoto{Entry: e}
		for _, v := range e.Variants {
			switch v {
			case remotecache.VariantThumbnail:
				rp.ThumbnailURL = remoteURL(e.ExternalID, v)
			case remotecache.VariantMedium:
				rp.URL = remoteURL(e.ExternalID, v)
			}
		}
		out = append(out, rp)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) ServeRemotePhoto(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	v, ok := remotecache.ParseVariant(vars["variant"])
	if !ok {
		writeJSONError(w, "unknown variant", http.StatusNotFound)
		return
	}
	serveFile(w, r, h.cache.Path(vars["id"], v), "image/jpeg")
}

// TriggerSync starts a sync run in the background. A run already in
// progress is left alone.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		writeJSONError(w, "remote sync is not configured", http.StatusServiceUnavailable)
		return
	}
	h.sync.Trigger(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handlers) GetSyncStatus(w http.ResponseWriter, _ *http.Request) {
	status := SyncStatus{Enabled: h.sync != nil}
	if h.sync != nil {
		at, result, err := h.sync.Last()
		if !at.IsZero() {
			status.LastRun = at.UTC().Format(time.RFC3339)
		}
		status.Result = result
		if err != nil {
			status.Error = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *Handlers) ClearRemoteCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.ClearAll(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "success")
}

func (h *Handlers) RemoteCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

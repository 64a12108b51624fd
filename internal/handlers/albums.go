package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"photo-kiosk/internal/album"
)

type createAlbumRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type albumPhotosRequest struct {
	PhotoIDs []string `json:"photoIds"`
}

func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albums.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, albums)
}

func (h *Handlers) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req createAlbumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.albums.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handlers) GetAlbum(w http.ResponseWriter, r *http.Request) {
	a, err := h.albums.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// UpdateAlbum renames, describes or (de)activates an album. Absent fields
// are left unchanged.
func (h *Handlers) UpdateAlbum(w http.ResponseWriter, r *http.Request) {
	var upd album.AlbumUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.albums.Update(r.Context(), mux.Vars(r)["id"], upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	if err := h.albums.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "success")
}

// GetAlbumPhotos returns the photos of an album that still exist, newest
// first.
func (h *Handlers) GetAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.albums.Photos(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, photos)
}

func (h *Handlers) AddAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	var req albumPhotosRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.albums.AddPhotos(r.Context(), mux.Vars(r)["id"], req.PhotoIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) RemoveAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	var req albumPhotosRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.albums.RemovePhotos(r.Context(), mux.Vars(r)["id"], req.PhotoIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Slideshow returns the photos of every active album, ordered by the
// configured slideshow order.
func (h *Handlers) Slideshow(w http.ResponseWriter, r *http.Request) {
	photos, err := h.albums.ListActivePhotos(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, photos)
}

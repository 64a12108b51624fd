package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/library"
	"photo-kiosk/internal/logging"
)

// uploadItem is one entry of the upload response. Failed files carry the
// error instead of a photo.
type uploadItem struct {
	Status   string         `json:"status"`
	Filename string         `json:"filename"`
	Photo    *library.Photo `json:"photo,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ListPhotos returns the library, newest first.
func (h *Handlers) ListPhotos(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.library.List())
}

// UploadPhotos stores every file of a multipart upload. Each file is
// reported individually; one failing file does not fail the request.
func (h *Handlers) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadMemory); err != nil {
		writeJSONError(w, "expected multipart form upload", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Warn("Failed to remove multipart temp files: %v", err)
		}
	}()

	var files []*multipart.FileHeader
	files = append(files, r.MultipartForm.File["files"]...)
	files = append(files, r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		writeJSONError(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	results := make([]uploadItem, 0, len(files))
	for _, fh := range files {
		item := uploadItem{Filename: fh.Filename}

		f, err := fh.Open()
		if err != nil {
			item.Status, item.Error = "error", "failed to read upload"
			results = append(results, item)
			continue
		}
		res, err := h.library.Upload(r.Context(), f, fh.Filename)
		f.Close()
		if err != nil {
			logging.Warn("Upload of %s failed: %v", fh.Filename, err)
			item.Status, item.Error = "error", apperr.Message(err)
		} else {
			item.Status, item.Photo = string(res.Status), &res.Photo
		}
		results = append(results, item)
	}

	respondJSON(w, http.StatusOK, results)
}

func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.library.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// photoUpdateRequest uses pointers so that absent fields are left alone
// while empty strings clear a value.
type photoUpdateRequest struct {
	Description  *string `json:"description"`
	CapturedAt   *string `json:"capturedAt"`
	DateTaken    *string `json:"date_taken"`
	LocationName *string `json:"locationName"`
}

func (h *Handlers) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	var req photoUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	upd := library.PhotoUpdate{
		Description:  req.Description,
		CapturedAt:   req.CapturedAt,
		LocationName: req.LocationName,
	}
	if upd.CapturedAt == nil {
		upd.CapturedAt = req.DateTaken
	}

	p, err := h.library.Update(r.Context(), mux.Vars(r)["id"], upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeletePhoto removes the photo from the library, then from every album
// that references it.
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.library.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if n, err := h.albums.Purge(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	} else if n > 0 {
		logging.Debug("Purged photo %s from %d albums", id, n)
	}
	writeJSONStatus(w, "success")
}

// RotatePhoto rotates by the "degrees" query parameter (default 90,
// clockwise). A JSON body {"degrees": n} is accepted as well.
func (h *Handlers) RotatePhoto(w http.ResponseWriter, r *http.Request) {
	degrees := 90
	raw := r.URL.Query().Get("degrees")
	if raw == "" {
		raw = r.URL.Query().Get("degree")
	}
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, "degrees must be an integer", http.StatusBadRequest)
			return
		}
		degrees = n
	} else if r.ContentLength > 0 {
		var body struct {
			Degrees int `json:"degrees"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		degrees = body.Degrees
	}

	p, err := h.library.Rotate(r.Context(), mux.Vars(r)["id"], degrees)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) CropPhoto(w http.ResponseWriter, r *http.Request) {
	var rect library.CropRect
	if err := decodeJSON(r, &rect); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.library.Crop(r.Context(), mux.Vars(r)["id"], rect)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) ResetPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.library.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ServeLibraryFile streams the original or a derivative of a photo.
func (h *Handlers) ServeLibraryFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	v, ok := library.ParseVariant(vars["variant"])
	if !ok {
		writeJSONError(w, "unknown variant", http.StatusNotFound)
		return
	}
	path, mimeType, err := h.library.Resolve(vars["id"], v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	serveFile(w, r, path, mimeType)
}

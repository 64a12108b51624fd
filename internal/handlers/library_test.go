package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"photo-kiosk/internal/library"
)

func upload(env *testEnv, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/library/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.h.UploadPhotos(w, req)
	return w
}

func TestUploadPhotos(t *testing.T) {
	env := newTestEnv(t, nil)
	data := pngBytes(t, 64, 48, 1)

	body, contentType := multipartBody(t, "files", map[string][]byte{"a.png": data})
	w := upload(env, body, contentType)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var items []uploadItem
	decode(t, w, &items)
	if len(items) != 1 || items[0].Status != string(library.StatusCreated) || items[0].Photo == nil {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Filename != "a.png" {
		t.Errorf("Filename = %q", items[0].Filename)
	}

	// Same bytes under the "file" field are reported as a duplicate.
	body, contentType = multipartBody(t, "file", map[string][]byte{"again.png": data})
	w = upload(env, body, contentType)
	items = nil
	decode(t, w, &items)
	if len(items) != 1 || items[0].Status != string(library.StatusDuplicate) {
		t.Fatalf("items = %+v", items)
	}
	if env.library.Len() != 1 {
		t.Errorf("library has %d photos, want 1", env.library.Len())
	}
}

func TestUploadPhotosRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	w := upload(env, strings.NewReader(`{"x":1}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart status = %d, want 400", w.Code)
	}

	body, contentType := multipartBody(t, "other", map[string][]byte{"a.png": pngBytes(t, 8, 8, 1)})
	w = upload(env, body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no files status = %d, want 400", w.Code)
	}
}

func TestListPhotosNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addPhoto(t, 1)
	env.addPhoto(t, 2)

	w := do(env.h.ListPhotos, http.MethodGet, "/api/library", nil, nil)
	var photos []library.Photo
	decode(t, w, &photos)
	if len(photos) != 2 {
		t.Fatalf("got %d photos, want 2", len(photos))
	}
	if photos[0].CreatedAt.Before(photos[1].CreatedAt) {
		t.Error("photos not sorted newest first")
	}
	for i, p := range env.library.List() {
		if photos[i].ID != p.ID {
			t.Errorf("photo %d = %s, want %s in store order", i, photos[i].ID, p.ID)
		}
	}
}

func TestGetPhoto(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.addPhoto(t, 1)

	w := do(env.h.GetPhoto, http.MethodGet, "/", nil, map[string]string{"id": p.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got library.Photo
	decode(t, w, &got)
	if got.ID != p.ID || got.URL != library.FileURL(p.ID, library.VariantOriginal) {
		t.Errorf("photo = %+v", got)
	}

	w = do(env.h.GetPhoto, http.MethodGet, "/", nil, map[string]string{"id": "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestUpdatePhotoAcceptsDateTakenAlias(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.addPhoto(t, 1)

	body := jsonBody(t, map[string]string{"description": "beach", "date_taken": "2021-06-01T10:00:00"})
	w := do(env.h.UpdatePhoto, http.MethodPut, "/", body, map[string]string{"id": p.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got library.Photo
	decode(t, w, &got)
	if got.Description != "beach" || got.CapturedAt != "2021-06-01T10:00:00" {
		t.Errorf("photo = %+v", got)
	}

	w = do(env.h.UpdatePhoto, http.MethodPut, "/", strings.NewReader("{"), map[string]string{"id": p.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want 400", w.Code)
	}
}

func TestDeletePhotoPurgesAlbums(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.addPhoto(t, 1)
	a, err := env.albums.Create(ctx, "Trip", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.albums.AddPhotos(ctx, a.ID, []string{p.ID}); err != nil {
		t.Fatal(err)
	}

	w := do(env.h.DeletePhoto, http.MethodDelete, "/", nil, map[string]string{"id": p.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got, err := env.albums.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.PhotoIDs) != 0 {
		t.Errorf("album still references %v", got.PhotoIDs)
	}

	w = do(env.h.DeletePhoto, http.MethodDelete, "/", nil, map[string]string{"id": p.ID})
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestRotatePhoto(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.addPhoto(t, 1)
	vars := map[string]string{"id": p.ID}

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantDeg    int
	}{
		{"default quarter turn", "/", "", http.StatusOK, 90},
		{"query degrees", "/?degrees=180", "", http.StatusOK, 270},
		{"json body", "/", `{"degrees":90}`, http.StatusOK, 0},
		{"not a number", "/?degrees=abc", "", http.StatusBadRequest, 0},
		{"not a quarter turn", "/?degrees=45", "", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			w := do(env.h.RotatePhoto, http.MethodPost, tt.target, body, vars)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got library.Photo
			decode(t, w, &got)
			if got.RotationDegrees != tt.wantDeg {
				t.Errorf("RotationDegrees = %d, want %d", got.RotationDegrees, tt.wantDeg)
			}
		})
	}
}

func TestCropAndResetPhoto(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.addPhoto(t, 1)
	vars := map[string]string{"id": p.ID}

	w := do(env.h.CropPhoto, http.MethodPost, "/", strings.NewReader(`{"x":4,"y":4,"width":32,"height":24}`), vars)
	if w.Code != http.StatusOK {
		t.Fatalf("crop status = %d, body = %s", w.Code, w.Body.String())
	}
	var got library.Photo
	decode(t, w, &got)
	if got.Crop == nil || got.Crop.Width != 32 {
		t.Errorf("Crop = %+v", got.Crop)
	}

	w = do(env.h.CropPhoto, http.MethodPost, "/", strings.NewReader(`{"x":0,"y":0,"width":0,"height":10}`), vars)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty crop status = %d, want 400", w.Code)
	}

	w = do(env.h.ResetPhoto, http.MethodPost, "/", nil, vars)
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	got = library.Photo{}
	decode(t, w, &got)
	if got.Crop != nil || got.RotationDegrees != 0 {
		t.Errorf("photo not reset: %+v", got)
	}
}

func TestServeLibraryFile(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.addPhoto(t, 1)

	tests := []struct {
		name       string
		vars       map[string]string
		wantStatus int
		wantType   string
	}{
		{"original", map[string]string{"id": p.ID}, http.StatusOK, "image/png"},
		{"thumbnail", map[string]string{"id": p.ID, "variant": "thumbnail"}, http.StatusOK, "image/jpeg"},
		{"web", map[string]string{"id": p.ID, "variant": "web"}, http.StatusOK, "image/jpeg"},
		{"unknown variant", map[string]string{"id": p.ID, "variant": "huge"}, http.StatusNotFound, ""},
		{"unknown photo", map[string]string{"id": "nope"}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(env.h.ServeLibraryFile, http.MethodGet, "/", nil, tt.vars)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantType != "" {
				if ct := w.Header().Get("Content-Type"); ct != tt.wantType {
					t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
				}
				if w.Body.Len() == 0 {
					t.Error("empty body")
				}
			}
		})
	}
}

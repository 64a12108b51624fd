package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"photo-kiosk/internal/apperr"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"Simple map", map[string]string{"status": "ok"}, `{"status":"ok"}`},
		{"String slice", []string{"a", "b"}, `["a","b"]`},
		{"Null", nil, `null`},
		{"Empty slice", []string{}, `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.input)
			if got := strings.TrimSpace(w.Body.String()); got != tt.expected {
				t.Errorf("writeJSON() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestWriteJSONHandlesInvalidTypes(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeJSON(w, make(chan int))
	if w.Body.Len() != 0 {
		t.Errorf("expected no body for unencodable value, got %q", w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", apperr.NotFound("photo %s not found", "x"), http.StatusNotFound, "photo x not found"},
		{"invalid", apperr.Invalid("bad crop"), http.StatusBadRequest, "bad crop"},
		{"unsupported", apperr.Unsupported("cannot decode"), http.StatusUnsupportedMediaType, "cannot decode"},
		{"plain error hides detail", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody), tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if tt.wantMsg != "" && body["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", body["error"], tt.wantMsg)
			}
			if strings.Contains(body["error"], "disk on fire") {
				t.Error("internal error detail leaked to client")
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"a"}`, false},
		{"empty", ``, true},
		{"malformed", `{"name":`, true},
		{"wrong type", `{"name":1}`, true},
		{"oversized", `{"name":"` + strings.Repeat("a", maxJSONBody) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var v struct {
				Name string `json:"name"`
			}
			err := decodeJSON(req, &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && apperr.Code(err) != apperr.EINVALID {
				t.Errorf("code = %s, want invalid", apperr.Code(err))
			}
		})
	}
}

func TestWriteJSONStatus(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeJSONStatus(w, "success")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("status = %d, content type = %q", w.Code, w.Header().Get("Content-Type"))
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"success"}` {
		t.Errorf("body = %s", got)
	}
}

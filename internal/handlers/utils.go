package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/filesystem"
	"photo-kiosk/internal/logging"
)

// maxJSONBody bounds request bodies that are decoded as JSON.
const maxJSONBody = 1 << 20

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// respondJSON writes v with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// writeError maps a domain error to its HTTP status. Internal failures
// are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.Code(err)
	status := apperr.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Debug("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}
	writeJSONError(w, apperr.Message(err), status)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Invalid("invalid JSON body: %v", err)
	}
	return nil
}

// serveFile streams a file with the given content type. Derivatives are
// rewritten in place by edits, so clients must revalidate every time.
func serveFile(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSONError(w, "file not found", http.StatusNotFound)
			return
		}
		writeError(w, r, apperr.IO("open "+path, err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, apperr.IO("stat "+path, err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "", info.ModTime(), f)
}

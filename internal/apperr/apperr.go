// Package apperr defines the coded errors shared by the library, album,
// cache and migration packages. The HTTP layer maps codes to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	ENOTFOUND    = "not_found"   // 404
	EINVALID     = "invalid"     // 400
	EUNSUPPORTED = "unsupported" // 415
	EIO          = "io"          // 500, storage failure
	EEXTERNAL    = "external"    // 502, remote source or geocoder
	EINTERNAL    = "internal"    // 500
)

// Error is an application error with a machine-readable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new application error with a formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code string, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *Error {
	return Errorf(ENOTFOUND, format, args...)
}

// Invalid creates a validation error.
func Invalid(format string, args ...any) *Error {
	return Errorf(EINVALID, format, args...)
}

// Unsupported creates an error for operations that do not apply to a media
// type, such as editing a video.
func Unsupported(format string, args ...any) *Error {
	return Errorf(EUNSUPPORTED, format, args...)
}

// IO wraps a disk or document store failure.
func IO(message string, err error) *Error {
	return Wrap(EIO, message, err)
}

// External wraps a failure of a remote collaborator.
func External(message string, err error) *Error {
	return Wrap(EEXTERNAL, message, err)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return Wrap(EINTERNAL, message, err)
}

// Code extracts the error code from an error.
// Returns EINTERNAL if the error is not an *Error and "" for nil.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// Message extracts the client-safe message from an error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An internal error occurred."
}

// Is reports whether err carries code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code string) int {
	switch code {
	case ENOTFOUND:
		return http.StatusNotFound
	case EINVALID:
		return http.StatusBadRequest
	case EUNSUPPORTED:
		return http.StatusUnsupportedMediaType
	case EEXTERNAL:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Package docstore persists the small JSON documents that hold library and
// album state: the library index, one document per album, the active album
// list and the remote cache metadata map.
//
// Keys are slash-separated paths such as "library/index" or "albums/<id>".
// Each segment may contain letters, digits, '-', '_' and '.', but may not be
// "." or "..".
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"photo-kiosk/internal/metrics"
)

// Document keys shared by the stores.
const (
	KeyLibraryIndex   = "library/index"
	KeyActiveAlbums   = "albums/active"
	KeyRemoteMetadata = "remote/metadata"
	AlbumPrefix       = "albums/"
)

var (
	// ErrNotFound is returned by Load when no document exists for a key.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidKey is returned for keys that fail ValidateKey.
	ErrInvalidKey = errors.New("invalid document key")
)

// Backend stores opaque document bodies by key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateKey rejects empty keys, empty segments and path traversal.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." || !segmentPattern.MatchString(seg) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// LoadJSON decodes the document at key into v. It reports found=false, and
// leaves v untouched, when the document does not exist.
func LoadJSON(ctx context.Context, b Backend, key string, v any) (bool, error) {
	body, err := b.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v as indented JSON and stores it at key.
func SaveJSON(ctx context.Context, b Backend, key string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Save(ctx, key, body)
}

// Instrumented wraps a backend so that every call is counted and timed
// under the given backend label.
func Instrumented(b Backend, label string) Backend {
	return &instrumented{next: b, label: label}
}

type instrumented struct {
	next  Backend
	label string
}

func (i *instrumented) record(op string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DocStoreOpsTotal.WithLabelValues(i.label, op, status).Inc()
	metrics.DocStoreOpDuration.WithLabelValues(i.label, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Load(ctx context.Context, key string) (body []byte, err error) {
	defer func(start time.Time) { i.record("load", start, err) }(time.Now())
	return i.next.Load(ctx, key)
}

func (i *instrumented) Save(ctx context.Context, key string, body []byte) (err error) {
	defer func(start time.Time) { i.record("save", start, err) }(time.Now())
	return i.next.Save(ctx, key, body)
}

func (i *instrumented) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { i.record("delete", start, err) }(time.Now())
	return i.next.Delete(ctx, key)
}

func (i *instrumented) Keys(ctx context.Context, prefix string) (keys []string, err error) {
	defer func(start time.Time) { i.record("keys", start, err) }(time.Now())
	return i.next.Keys(ctx, prefix)
}

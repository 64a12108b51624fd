package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/docstore"
	"photo-kiosk/internal/exifmeta"
	"photo-kiosk/internal/filesystem"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/media"
	"photo-kiosk/internal/mediatypes"
	"photo-kiosk/internal/metrics"
	"photo-kiosk/internal/workers"
)

// MetadataExtractor reads capture metadata from an original.
// *exifmeta.Extractor satisfies it.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) exifmeta.Info
}

// Config holds the collaborators of a Store.
type Config struct {
	// Dir holds the originals.
	Dir       string
	Backend   docstore.Backend
	Generator *media.Generator
	// Metadata may be nil, in which case no EXIF data is recorded.
	Metadata MetadataExtractor
	// Pool bounds image work. Nil means a single slot.
	Pool *workers.Pool
}

// Store is the library index plus the files it describes.
type Store struct {
	dir     string
	backend docstore.Backend
	gen     *media.Generator
	meta    MetadataExtractor
	pool    *workers.Pool

	mu      sync.Mutex
	photos  []Photo
	pending map[string]chan struct{} // content hashes being ingested

	// editMu serializes derivative edits so two edits of one photo cannot
	// interleave their regenerate and record steps.
	editMu sync.Mutex
}

// Open loads the library index from the backend.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dir == "" || cfg.Backend == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("library: Dir, Backend and Generator are required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, apperr.IO("create library directory", err)
	}

	s := &Store{
		dir:     cfg.Dir,
		backend: cfg.Backend,
		gen:     cfg.Generator,
		meta:    cfg.Metadata,
		pool:    cfg.Pool,
		pending: make(map[string]chan struct{}),
	}
	if s.pool == nil {
		s.pool = workers.NewPool(1, nil)
	}

	var photos []Photo
	if _, err := docstore.LoadJSON(ctx, s.backend, docstore.KeyLibraryIndex, &photos); err != nil {
		return nil, apperr.IO("load library index", err)
	}
	s.photos = photos
	s.updateMetrics()

	logging.Info("Library opened: %d items in %s", len(photos), cfg.Dir)
	return s, nil
}

// Dir returns the originals directory.
func (s *Store) Dir() string { return s.dir }

// Len returns the number of photos in the index.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

// Get returns the photo with the given id.
func (s *Store) Get(id string) (*Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, apperr.NotFound("photo %s not found", id)
	}
	p := s.photos[i].withURLs()
	return &p, nil
}

// Lookup is Get without the error value, for callers that skip unknown ids.
func (s *Store) Lookup(id string) (Photo, bool) {
	p, err := s.Get(id)
	if err != nil {
		return Photo{}, false
	}
	return *p, true
}

// List returns every photo, newest first.
func (s *Store) List() []Photo {
	s.mu.Lock()
	out := make([]Photo, len(s.photos))
	for i := range s.photos {
		out[i] = s.photos[i].withURLs()
	}
	s.mu.Unlock()

	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders photos by CreatedAt descending, ties by id.
func SortNewestFirst(photos []Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		if !photos[i].CreatedAt.Equal(photos[j].CreatedAt) {
			return photos[i].CreatedAt.After(photos[j].CreatedAt)
		}
		return photos[i].ID < photos[j].ID
	})
}

// Update merges metadata overrides into a photo and stamps UpdatedAt.
func (s *Store) Update(ctx context.Context, id string, upd PhotoUpdate) (*Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, apperr.NotFound("photo %s not found", id)
	}

	prev := s.photos[i]
	p := prev
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.CapturedAt != nil {
		p.CapturedAt = *upd.CapturedAt
	}
	if upd.LocationName != nil {
		p.LocationName = *upd.LocationName
	}
	now := time.Now().UTC()
	p.UpdatedAt = &now

	s.photos[i] = p
	if err := s.saveLocked(ctx); err != nil {
		s.photos[i] = prev
		return nil, err
	}
	out := p.withURLs()
	return &out, nil
}

// Delete removes a photo's original, its derivatives and its index entry.
// Missing files are tolerated. Albums still referencing the id must be
// purged by the caller.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return apperr.NotFound("photo %s not found", id)
	}
	p := s.photos[i]

	prev := s.photos
	s.photos = append(append([]Photo(nil), prev[:i]...), prev[i+1:]...)
	if err := s.saveLocked(ctx); err != nil {
		s.photos = prev
		return err
	}

	if err := filesystem.RemoveIfExists(filepath.Join(s.dir, p.StoredFilename)); err != nil {
		logging.Error("Failed to delete original %s: %v", p.StoredFilename, err)
	}
	if err := s.gen.Remove(p.DerivativeName()); err != nil {
		logging.Error("Failed to delete derivatives of %s: %v", id, err)
	}
	s.updateMetricsLocked()
	logging.Info("Deleted photo %s (%s)", id, p.OriginalFilename)
	return nil
}

// Resolve returns the path and MIME type of the file serving variant v of
// photo id. Missing derivatives, and derivatives of videos, fall back to
// the original.
func (s *Store) Resolve(id string, v Variant) (path, mimeType string, err error) {
	p, err := s.Get(id)
	if err != nil {
		return "", "", err
	}

	if v != VariantOriginal && p.IsImage() {
		thumb, web := s.gen.Paths(p.DerivativeName())
		candidate := web
		if v == VariantThumbnail {
			candidate = thumb
		}
		if _, err := filesystem.StatWithRetry(candidate, filesystem.DefaultRetryConfig()); err == nil {
			return candidate, "image/jpeg", nil
		}
		logging.Debug("Derivative %s missing for %s, serving original", v, id)
	}

	orig := filepath.Join(s.dir, p.StoredFilename)
	if _, err := filesystem.StatWithRetry(orig, filesystem.DefaultRetryConfig()); err != nil {
		return "", "", apperr.NotFound("original of photo %s missing", id)
	}
	return orig, mediatypes.GetMimeType(filepath.Ext(p.StoredFilename)), nil
}

// OriginalPath returns where the original of p is stored.
func (s *Store) OriginalPath(p *Photo) string {
	return filepath.Join(s.dir, p.StoredFilename)
}

// Stats counts the photos and their original bytes.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	var st Stats
	for i := range s.photos {
		if s.photos[i].IsImage() {
			st.Images++
		} else {
			st.Videos++
		}
		st.Bytes += s.photos[i].ByteSize
	}
	return st
}

func (s *Store) updateMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateMetricsLocked()
}

func (s *Store) updateMetricsLocked() {
	st := s.statsLocked()
	metrics.LibraryMediaTotal.WithLabelValues(string(mediatypes.FileTypeImage)).Set(float64(st.Images))
	metrics.LibraryMediaTotal.WithLabelValues(string(mediatypes.FileTypeVideo)).Set(float64(st.Videos))
	metrics.LibraryBytesTotal.Set(float64(st.Bytes))
}

func (s *Store) indexOf(id string) int {
	for i := range s.photos {
		if s.photos[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) byHash(hash string) (Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfHash(hash); i >= 0 {
		return s.photos[i], true
	}
	return Photo{}, false
}

func (s *Store) indexOfHash(hash string) int {
	for i := range s.photos {
		if s.photos[i].ContentHash == hash {
			return i
		}
	}
	return -1
}

// saveLocked persists the index. Locators are derived on read and are not
// stored.
func (s *Store) saveLocked(ctx context.Context) error {
	out := make([]Photo, len(s.photos))
	for i, p := range s.photos {
		p.URL, p.ThumbnailURL, p.WebURL = "", "", ""
		out[i] = p
	}
	if err := docstore.SaveJSON(ctx, s.backend, docstore.KeyLibraryIndex, out); err != nil {
		return apperr.IO("save library index", err)
	}
	return nil
}

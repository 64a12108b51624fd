// Package album organizes library photos into named albums and builds the
// slideshow from the albums marked active.
//
// Albums hold photo ids only. Everything shown about a photo, including the
// album cover file name, is resolved through the library at read time, so
// ids of deleted photos are skipped rather than reported.
package album

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/docstore"
	"photo-kiosk/internal/library"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

// Order is the slideshow ordering.
type Order string

const (
	OrderShuffle Order = "shuffle"
	OrderDate    Order = "date"
)

// ParseOrder accepts "shuffle" and "date"; anything else is shuffle.
func ParseOrder(s string) Order {
	if Order(strings.ToLower(strings.TrimSpace(s))) == OrderDate {
		return OrderDate
	}
	return OrderShuffle
}

// Album is a named set of photo ids.
type Album struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	PhotoIDs     []string  `json:"photoIds"`
	CoverPhotoID string    `json:"coverPhotoId,omitempty"`

	// Computed on read.
	CoverPhotoFilename string `json:"coverPhotoFilename,omitempty"`
	Active             bool   `json:"active"`
	PhotoCount         int    `json:"photoCount"`
}

// document is the persisted form of an Album.
type document struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	PhotoIDs     []string  `json:"photoIds"`
	CoverPhotoID string    `json:"coverPhotoId,omitempty"`
}

// AlbumUpdate holds the fields Update may change. Nil fields are kept.
type AlbumUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

// SlideshowPhoto is a photo attributed to the first active album that
// contains it.
type SlideshowPhoto struct {
	library.Photo
	AlbumName string `json:"albumName"`
}

// Photos resolves photo ids. *library.Store satisfies it.
type Photos interface {
	Lookup(id string) (library.Photo, bool)
}

// Config holds the collaborators of a Store.
type Config struct {
	Backend docstore.Backend
	Photos  Photos
	Order   Order
}

// Store manages album documents and the active album list.
type Store struct {
	backend docstore.Backend
	photos  Photos
	order   Order
	shuffle func(n int, swap func(i, j int))

	mu sync.Mutex
}

// New returns a Store.
func New(cfg Config) *Store {
	order := cfg.Order
	if order == "" {
		order = OrderShuffle
	}
	return &Store{
		backend: cfg.Backend,
		photos:  cfg.Photos,
		order:   order,
		shuffle: rand.Shuffle,
	}
}

func key(id string) string { return docstore.AlbumPrefix + id }

// Create adds an empty album.
func (s *Store) Create(ctx context.Context, name, description string) (*Album, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("album name is required")
	}

	now := time.Now().UTC()
	doc := &document{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		PhotoIDs:    []string{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(ctx, doc); err != nil {
		return nil, err
	}
	s.updateMetricsLocked(ctx)
	logging.Info("Album created: %s (%s)", doc.Name, doc.ID)
	return s.viewLocked(doc, false), nil
}

// Put stores a fully formed album, replacing any album with the same id.
// It is used to carry albums over from older layouts.
func (s *Store) Put(ctx context.Context, a Album, active bool) error {
	if err := docstore.ValidateKey(key(a.ID)); err != nil || a.ID == "active" {
		return apperr.Invalid("invalid album id %q", a.ID)
	}
	doc := &document{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
		PhotoIDs:     dedupe(a.PhotoIDs),
		CoverPhotoID: a.CoverPhotoID,
	}
	if doc.CoverPhotoID != "" && !slices.Contains(doc.PhotoIDs, doc.CoverPhotoID) {
		doc.CoverPhotoID = ""
	}
	if doc.CoverPhotoID == "" {
		doc.CoverPhotoID = s.pickCover(doc.PhotoIDs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(ctx, doc); err != nil {
		return err
	}
	if active {
		if err := s.setActiveLocked(ctx, doc.ID, true); err != nil {
			return err
		}
	}
	s.updateMetricsLocked(ctx)
	return nil
}

// Get returns one album.
func (s *Store) Get(ctx context.Context, id string) (*Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := s.activeLocked(ctx)
	if err != nil {
		return nil, err
	}
	return s.viewLocked(doc, slices.Contains(active, id)), nil
}

// List returns every album, newest first.
func (s *Store) List(ctx context.Context) ([]Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.allLocked(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.activeLocked(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Album, 0, len(docs))
	for _, doc := range docs {
		out = append(out, *s.viewLocked(doc, slices.Contains(active, doc.ID)))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update renames, re-describes or (de)activates an album.
func (s *Store) Update(ctx context.Context, id string, upd AlbumUpdate) (*Album, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, apperr.Invalid("album name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		doc.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		doc.Description = *upd.Description
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.saveLocked(ctx, doc); err != nil {
		return nil, err
	}
	if upd.Active != nil {
		if err := s.setActiveLocked(ctx, id, *upd.Active); err != nil {
			return nil, err
		}
	}

	active, err := s.activeLocked(ctx)
	if err != nil {
		return nil, err
	}
	s.updateMetricsLocked(ctx)
	return s.viewLocked(doc, slices.Contains(active, id)), nil
}

// Delete removes an album and takes it off the active list. Its photos are
// untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadLocked(ctx, id); err != nil {
		return err
	}
	if err := s.setActiveLocked(ctx, id, false); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key(id)); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return apperr.IO("delete album", err)
	}
	s.updateMetricsLocked(ctx)
	logging.Info("Album deleted: %s", id)
	return nil
}

// AddPhotos adds ids not already present, keeping insertion order. An
// album without a cover gets the first member that is an image.
func (s *Store) AddPhotos(ctx context.Context, id string, photoIDs []string) (*Album, error) {
	return s.mutate(ctx, id, func(doc *document) {
		for _, pid := range photoIDs {
			if pid != "" && !slices.Contains(doc.PhotoIDs, pid) {
				doc.PhotoIDs = append(doc.PhotoIDs, pid)
			}
		}
		if doc.CoverPhotoID == "" {
			doc.CoverPhotoID = s.pickCover(doc.PhotoIDs)
		}
	})
}

// RemovePhotos removes ids from an album and replaces the cover if it was
// among them.
func (s *Store) RemovePhotos(ctx context.Context, id string, photoIDs []string) (*Album, error) {
	return s.mutate(ctx, id, func(doc *document) {
		removeMembers(doc, photoIDs)
		s.fixCover(doc)
	})
}

// Purge removes photoID from every album. It returns how many albums
// changed.
func (s *Store) Purge(ctx context.Context, photoID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.allLocked(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	var errs []error
	for _, doc := range docs {
		if !slices.Contains(doc.PhotoIDs, photoID) {
			continue
		}
		removeMembers(doc, []string{photoID})
		s.fixCover(doc)
		doc.UpdatedAt = time.Now().UTC()
		if err := s.saveLocked(ctx, doc); err != nil {
			errs = append(errs, err)
			continue
		}
		changed++
	}
	if changed > 0 {
		logging.Info("Photo %s purged from %d album(s)", photoID, changed)
	}
	return changed, errors.Join(errs...)
}

// Photos returns the album's photos that still exist, newest first.
func (s *Store) Photos(ctx context.Context, id string) ([]library.Photo, error) {
	s.mu.Lock()
	doc, err := s.loadLocked(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]library.Photo, 0, len(doc.PhotoIDs))
	for _, pid := range doc.PhotoIDs {
		if p, ok := s.photos.Lookup(pid); ok {
			out = append(out, p)
		}
	}
	library.SortNewestFirst(out)
	return out, nil
}

// ListActivePhotos returns the union of the active albums' photos,
// deduplicated by id, in slideshow order.
func (s *Store) ListActivePhotos(ctx context.Context) ([]SlideshowPhoto, error) {
	s.mu.Lock()
	active, err := s.activeLocked(ctx)
	var docs []*document
	if err == nil {
		for _, id := range active {
			doc, lerr := s.loadLocked(ctx, id)
			if apperr.Is(lerr, apperr.ENOTFOUND) {
				continue
			}
			if lerr != nil {
				err = lerr
				break
			}
			docs = append(docs, doc)
		}
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []SlideshowPhoto
	for _, doc := range docs {
		for _, pid := range doc.PhotoIDs {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			if p, ok := s.photos.Lookup(pid); ok {
				out = append(out, SlideshowPhoto{Photo: p, AlbumName: doc.Name})
			}
		}
	}

	if s.order == OrderDate {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	} else {
		s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out, nil
}

func (s *Store) mutate(ctx context.Context, id string, change func(*document)) (*Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	change(doc)
	doc.UpdatedAt = time.Now().UTC()
	if err := s.saveLocked(ctx, doc); err != nil {
		return nil, err
	}
	active, err := s.activeLocked(ctx)
	if err != nil {
		return nil, err
	}
	return s.viewLocked(doc, slices.Contains(active, id)), nil
}

func removeMembers(doc *document, ids []string) {
	doc.PhotoIDs = slices.DeleteFunc(doc.PhotoIDs, func(pid string) bool {
		return slices.Contains(ids, pid)
	})
}

// fixCover keeps the cover if it is still a member and picks a new one
// otherwise.
func (s *Store) fixCover(doc *document) {
	if doc.CoverPhotoID != "" && slices.Contains(doc.PhotoIDs, doc.CoverPhotoID) {
		return
	}
	doc.CoverPhotoID = s.pickCover(doc.PhotoIDs)
}

// pickCover returns the first id, in membership order, that resolves to an
// image.
func (s *Store) pickCover(ids []string) string {
	for _, pid := range ids {
		if p, ok := s.photos.Lookup(pid); ok && p.IsImage() {
			return pid
		}
	}
	return ""
}

// viewLocked builds the caller's view of doc. A cover whose photo has been
// deleted is replaced, for display only, by the first remaining image.
func (s *Store) viewLocked(doc *document, active bool) *Album {
	a := &Album{
		ID:           doc.ID,
		Name:         doc.Name,
		Description:  doc.Description,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		PhotoIDs:     slices.Clone(doc.PhotoIDs),
		CoverPhotoID: doc.CoverPhotoID,
		Active:       active,
	}
	if a.PhotoIDs == nil {
		a.PhotoIDs = []string{}
	}
	for _, pid := range doc.PhotoIDs {
		if _, ok := s.photos.Lookup(pid); ok {
			a.PhotoCount++
		}
	}

	cover, ok := s.photos.Lookup(doc.CoverPhotoID)
	if doc.CoverPhotoID == "" || !ok {
		if pid := s.pickCover(doc.PhotoIDs); pid != "" {
			cover, ok = s.photos.Lookup(pid)
		}
	}
	if ok {
		a.CoverPhotoFilename = cover.StoredFilename
	}
	return a
}

func (s *Store) loadLocked(ctx context.Context, id string) (*document, error) {
	if id == "" || id == "active" || docstore.ValidateKey(key(id)) != nil {
		return nil, apperr.NotFound("album %s not found", id)
	}
	var doc document
	found, err := docstore.LoadJSON(ctx, s.backend, key(id), &doc)
	if err != nil {
		return nil, apperr.IO("load album", err)
	}
	if !found {
		return nil, apperr.NotFound("album %s not found", id)
	}
	return &doc, nil
}

func (s *Store) saveLocked(ctx context.Context, doc *document) error {
	if doc.PhotoIDs == nil {
		doc.PhotoIDs = []string{}
	}
	if err := docstore.SaveJSON(ctx, s.backend, key(doc.ID), doc); err != nil {
		return apperr.IO("save album", err)
	}
	return nil
}

func (s *Store) allLocked(ctx context.Context) ([]*document, error) {
	keys, err := s.backend.Keys(ctx, docstore.AlbumPrefix)
	if err != nil {
		return nil, apperr.IO("list albums", err)
	}
	var docs []*document
	for _, k := range keys {
		if k == docstore.KeyActiveAlbums {
			continue
		}
		doc, err := s.loadLocked(ctx, strings.TrimPrefix(k, docstore.AlbumPrefix))
		if err != nil {
			logging.Warn("Skipping unreadable album %s: %v", k, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) activeLocked(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := docstore.LoadJSON(ctx, s.backend, docstore.KeyActiveAlbums, &ids); err != nil {
		return nil, apperr.IO("load active albums", err)
	}
	return ids, nil
}

func (s *Store) setActiveLocked(ctx context.Context, id string, active bool) error {
	ids, err := s.activeLocked(ctx)
	if err != nil {
		return err
	}
	has := slices.Contains(ids, id)
	switch {
	case active && !has:
		ids = append(ids, id)
	case !active && has:
		ids = slices.DeleteFunc(ids, func(v string) bool { return v == id })
	default:
		return nil
	}
	if ids == nil {
		ids = []string{}
	}
	if err := docstore.SaveJSON(ctx, s.backend, docstore.KeyActiveAlbums, ids); err != nil {
		return apperr.IO("save active albums", err)
	}
	return nil
}

func (s *Store) updateMetricsLocked(ctx context.Context) {
	keys, err := s.backend.Keys(ctx, docstore.AlbumPrefix)
	if err != nil {
		return
	}
	total := 0
	for _, k := range keys {
		if k != docstore.KeyActiveAlbums {
			total++
		}
	}
	metrics.AlbumsTotal.Set(float64(total))
	if active, err := s.activeLocked(ctx); err == nil {
		metrics.AlbumsActive.Set(float64(len(active)))
	}
}

// Counts returns the number of albums and how many are active.
func (s *Store) Counts(ctx context.Context) (total, active int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.allLocked(ctx)
	if err != nil {
		return 0, 0, err
	}
	ids, err := s.activeLocked(ctx)
	if err != nil {
		return 0, 0, err
	}
	return len(docs), len(ids), nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Package migration converts the legacy per-album directory layout into
// the content-addressed library plus album documents.
//
// The legacy layout is
//
//	<albums>/<album>/metadata.json
//	<albums>/<album>/photos.json
//	<albums>/<album>/<uuid>.<ext>
//	<thumbnails>/<album>/<uuid>.<ext>
//	<web>/<album>/<uuid>.<ext>
//
// Each media file keeps its file stem as photo id. Pre-rendered
// derivatives are moved when both exist, otherwise they are generated.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"photo-kiosk/internal/album"
	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/library"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/mediatypes"
	"photo-kiosk/internal/metrics"
)

// Library is the subset of the library store the migration writes to.
type Library interface {
	Len() int
	Import(ctx context.Context, src string, opts library.ImportOptions) (*library.UploadResult, error)
}

// Albums is the subset of the album store the migration writes to.
type Albums interface {
	Put(ctx context.Context, a album.Album, active bool) error
}

// Marker records that a migration finished, so later starts skip the
// directory scan entirely.
type Marker interface {
	MigrationFinished(ctx context.Context) (time.Time, error)
	SetMigrationFinished(ctx context.Context, t time.Time) error
}

// Config wires a migration.
type Config struct {
	AlbumsDir     string
	ThumbnailsDir string
	WebDir        string
	// Active lists album ids that were shown in the slideshow.
	Active  []string
	Library Library
	Albums  Albums
	Marker  Marker
}

// Report summarizes a run.
type Report struct {
	Skipped    bool     `json:"skipped"`
	Albums     int      `json:"albums"`
	Migrated   int      `json:"migrated"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Failures   []string `json:"failures,omitempty"`
}

// PartialFailure reports whether some files could not be migrated.
func (r *Report) PartialFailure() bool { return r.Failed > 0 }

func (r *Report) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logging.Warn("Migration: %s", msg)
	r.Failed++
	r.Failures = append(r.Failures, msg)
	metrics.MigrationFilesTotal.WithLabelValues("failed").Inc()
}

type legacyMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CoverPhoto  string `json:"cover_photo"`
}

// Run migrates every legacy album. It does nothing when the library
// already holds photos, when a previous run was recorded, or when the
// legacy directory does not exist. Per-file failures are counted in the
// report and do not stop the run.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	report := &Report{}

	if cfg.Library.Len() > 0 {
		logging.Debug("Migration skipped: library is not empty")
		report.Skipped = true
		return report, nil
	}
	if cfg.Marker != nil {
		if at, err := cfg.Marker.MigrationFinished(ctx); err != nil {
			logging.Warn("Failed to read migration marker: %v", err)
		} else if !at.IsZero() {
			logging.Debug("Migration skipped: finished at %s", at.Format(time.RFC3339))
			report.Skipped = true
			return report, nil
		}
	}

	entries, err := os.ReadDir(cfg.AlbumsDir)
	if errors.Is(err, os.ErrNotExist) {
		report.Skipped = true
		return report, nil
	}
	if err != nil {
		return nil, apperr.IO("read legacy albums directory", err)
	}

	logging.Info("Migrating legacy albums from %s", cfg.AlbumsDir)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() {
			continue
		}
		if err := migrateAlbum(ctx, cfg, entry.Name(), report); err != nil {
			report.fail("album %s: %v", entry.Name(), err)
		}
	}

	if cfg.Marker != nil {
		if err := cfg.Marker.SetMigrationFinished(ctx, time.Now()); err != nil {
			logging.Warn("Failed to record migration: %v", err)
		}
	}

	logging.Info("Migration finished: %d albums, %d photos migrated, %d duplicates, %d failed",
		report.Albums, report.Migrated, report.Duplicates, report.Failed)
	return report, nil
}

func migrateAlbum(ctx context.Context, cfg Config, name string, report *Report) error {
	dir := filepath.Join(cfg.AlbumsDir, name)
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var ids []string
	byFilename := make(map[string]string)

	for _, f := range files {
		if f.IsDir() || !mediatypes.IsLegacyMedia(f.Name()) {
			continue
		}
		filename := f.Name()
		res, err := cfg.Library.Import(ctx, filepath.Join(dir, filename), library.ImportOptions{
			ID:               strings.TrimSuffix(filename, filepath.Ext(filename)),
			OriginalFilename: filename,
			ThumbnailPath:    legacyDerivative(cfg.ThumbnailsDir, name, filename),
			WebPath:          legacyDerivative(cfg.WebDir, name, filename),
		})
		if err != nil {
			report.fail("%s/%s: %v", name, filename, err)
			continue
		}
		if res.Status == library.StatusDuplicate {
			report.Duplicates++
		} else {
			report.Migrated++
			metrics.MigrationFilesTotal.WithLabelValues("migrated").Inc()
		}
		ids = append(ids, res.Photo.ID)
		byFilename[filename] = res.Photo.ID
	}

	meta, err := readMetadata(dir)
	if err != nil {
		logging.Warn("Migration: album %s metadata unreadable, using defaults: %v", name, err)
	}

	now := time.Now().UTC()
	a := album.Album{
		ID:          name,
		Name:        meta.Name,
		Description: meta.Description,
		CreatedAt:   parseLegacyTime(meta.CreatedAt, now),
		PhotoIDs:    ids,
	}
	if a.Name == "" {
		a.Name = name
	}
	a.UpdatedAt = parseLegacyTime(meta.UpdatedAt, a.CreatedAt)
	if meta.CoverPhoto != "" {
		a.CoverPhotoID = byFilename[filepath.Base(meta.CoverPhoto)]
	}

	if err := cfg.Albums.Put(ctx, a, slices.Contains(cfg.Active, name)); err != nil {
		return err
	}
	report.Albums++
	metrics.MigrationAlbumsTotal.Inc()

	if err := os.Remove(filepath.Join(dir, "photos.json")); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Migration: failed to remove photos.json of %s: %v", name, err)
	}
	removeLegacyDir(cfg.ThumbnailsDir, name)
	removeLegacyDir(cfg.WebDir, name)

	logging.Info("Migrated album %s (%q) with %d photos", name, a.Name, len(ids))
	return nil
}

func legacyDerivative(root, albumDir, filename string) string {
	if root == "" {
		return ""
	}
	return filepath.Join(root, albumDir, filename)
}

func removeLegacyDir(root, albumDir string) {
	if root == "" {
		return
	}
	if err := os.RemoveAll(filepath.Join(root, albumDir)); err != nil {
		logging.Warn("Migration: failed to remove %s: %v", filepath.Join(root, albumDir), err)
	}
}

func readMetadata(dir string) (legacyMetadata, error) {
	var meta legacyMetadata
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseLegacyTime(s string, fallback time.Time) time.Time {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

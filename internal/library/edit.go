package library

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/filesystem"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/media"
	"photo-kiosk/internal/metrics"
	"photo-kiosk/internal/workers"
)

// NormalizeRotation maps any multiple of 90 into [0, 360).
func NormalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// ValidRotation reports whether deg is an accepted rotate increment.
func ValidRotation(deg int) bool {
	switch deg {
	case 90, 180, 270, -90, -180, -270:
		return true
	}
	return false
}

// Rotate turns the derivatives of photo id clockwise by degrees. The new
// angle is cumulative and the renditions are rendered again from the
// original.
func (s *Store) Rotate(ctx context.Context, id string, degrees int) (*Photo, error) {
	if !ValidRotation(degrees) {
		metrics.LibraryEditsTotal.WithLabelValues("rotate", "error").Inc()
		return nil, apperr.Invalid("unsupported rotation %d, use a multiple of 90 between -270 and 270", degrees)
	}
	return s.edit(ctx, "rotate", id, func(p *Photo) {
		p.RotationDegrees = NormalizeRotation(p.RotationDegrees + degrees)
	})
}

// Crop records a crop rectangle on photo id and renders its derivatives
// again. The rectangle is in pixels of the EXIF-oriented original and is
// applied before the rotation.
func (s *Store) Crop(ctx context.Context, id string, rect CropRect) (*Photo, error) {
	if rect.Width <= 0 || rect.Height <= 0 || rect.X < 0 || rect.Y < 0 {
		metrics.LibraryEditsTotal.WithLabelValues("crop", "error").Inc()
		return nil, apperr.Invalid("crop rectangle must have a non-negative origin and a positive size")
	}
	return s.edit(ctx, "crop", id, func(p *Photo) {
		r := rect
		p.Crop = &r
	})
}

// Reset renders the derivatives from the untouched original and clears
// rotation and crop.
func (s *Store) Reset(ctx context.Context, id string) (*Photo, error) {
	return s.edit(ctx, "reset", id, func(p *Photo) {
		p.RotationDegrees = 0
		p.Crop = nil
	})
}

// edit applies change to a copy of the photo, renders derivatives for the
// result and records it only when rendering succeeded.
func (s *Store) edit(ctx context.Context, op, id string, change func(*Photo)) (out *Photo, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.LibraryEditsTotal.WithLabelValues(op, status).Inc()
	}()

	s.editMu.Lock()
	defer s.editMu.Unlock()

	cur, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !cur.IsImage() {
		return nil, apperr.Unsupported("photo %s is a %s and cannot be edited", id, cur.MediaType)
	}
	if !filesystem.FileExists(s.OriginalPath(cur)) {
		return nil, apperr.NotFound("original of photo %s missing", id)
	}

	next := *cur
	change(&next)

	if err := s.renderWith(ctx, &next, next.Edits()); err != nil {
		if errors.Is(err, media.ErrCropOutOfBounds) {
			return nil, apperr.Invalid("crop rectangle lies outside the image")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.IO("render derivatives", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		// Deleted while rendering.
		_ = s.gen.Remove(next.DerivativeName())
		return nil, apperr.NotFound("photo %s not found", id)
	}
	prev := s.photos[i]
	s.photos[i].RotationDegrees = next.RotationDegrees
	s.photos[i].Crop = next.Crop
	if err := s.saveLocked(ctx); err != nil {
		s.photos[i] = prev
		return nil, err
	}

	logging.Info("Photo %s %s applied (rotation %d, crop %v)", id, op, next.RotationDegrees, next.Crop != nil)
	p := s.photos[i].withURLs()
	return &p, nil
}

// Regenerate renders the derivatives of one photo with its recorded edits.
func (s *Store) Regenerate(ctx context.Context, id string) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}
	if !p.IsImage() {
		return apperr.Unsupported("photo %s has no derivatives", id)
	}
	if err := s.render(ctx, p); err != nil {
		return apperr.IO("render derivatives", err)
	}
	return nil
}

// RegenerateResult summarizes RegenerateAll.
type RegenerateResult struct {
	Total  int
	Failed int
}

// RegenerateAll renders every image's derivatives through the worker pool.
// progress, if set, is called after each photo with the number done.
func (s *Store) RegenerateAll(ctx context.Context, progress func(done, total int)) (RegenerateResult, error) {
	var images []Photo
	for _, p := range s.List() {
		if p.IsImage() {
			images = append(images, p)
		}
	}

	res := RegenerateResult{Total: len(images)}
	var (
		failed     atomic.Int64
		progressMu sync.Mutex
		done       int
	)
	err := workers.Each(ctx, s.pool, images, func(p Photo) error {
		defer func() {
			progressMu.Lock()
			defer progressMu.Unlock()
			done++
			if progress != nil {
				progress(done, len(images))
			}
		}()
		_, err := s.gen.Generate(s.OriginalPath(&p), p.DerivativeName(), p.Edits())
		return err
	}, func(p Photo, err error) {
		failed.Add(1)
		logging.Warn("Regenerating %s (%s) failed: %v", p.ID, p.OriginalFilename, err)
	})
	res.Failed = int(failed.Load())

	logging.Info("Regenerated derivatives for %d images (%d failed)", res.Total-res.Failed, res.Failed)
	return res, err
}

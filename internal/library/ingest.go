package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/filesystem"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/media"
	"photo-kiosk/internal/mediatypes"
	"photo-kiosk/internal/metrics"
)

// Upload stores r as a new photo. If a photo with identical content already
// exists it is returned with StatusDuplicate and the library directory is
// not touched. Any extension is accepted; names without one are stored as
// DefaultExtension.
func (s *Store) Upload(ctx context.Context, r io.Reader, originalFilename string) (res *UploadResult, err error) {
	defer func() {
		status := "error"
		if err == nil {
			status = string(res.Status)
		}
		metrics.LibraryUploadsTotal.WithLabelValues(status).Inc()
	}()

	src, release, err := seekable(r)
	if err != nil {
		return nil, apperr.IO("buffer upload", err)
	}
	defer release()

	origin, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, apperr.IO("read upload", err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, src); err != nil {
		return nil, apperr.IO("read upload", err)
	}
	hash := hex.EncodeToString(h.Sum(nil))
	name := filepath.Base(originalFilename)

	if existing, ok := s.byHash(hash); ok {
		return duplicateOf(name, existing), nil
	}
	if _, err := src.Seek(origin, io.SeekStart); err != nil {
		return nil, apperr.IO("rewind upload", err)
	}

	tmpPath, err := s.stage(src)
	if err != nil {
		return nil, apperr.IO("write upload", err)
	}
	defer func() { _ = filesystem.RemoveIfExists(tmpPath) }()

	return s.ingest(ctx, ingestRequest{
		src:              tmpPath,
		hash:             hash,
		id:               uuid.NewString(),
		originalFilename: name,
	})
}

// seekable returns r as an io.ReadSeeker. Readers that cannot seek are
// spooled to a temporary file outside the library, removed by release.
func seekable(r io.Reader) (io.ReadSeeker, func(), error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, func() {}, nil
	}
	f, err := os.CreateTemp("", "kiosk-upload-*")
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}
	if _, err = io.Copy(f, r); err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	return f, release, nil
}

// stage copies src into a temporary file in the library directory, so the
// final move into place is a rename on the same volume.
func (s *Store) stage(src io.Reader) (path string, err error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	path = tmp.Name()
	defer func() {
		if err != nil {
			_ = filesystem.RemoveIfExists(path)
		}
	}()

	_, err = io.Copy(tmp, src)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	return path, err
}

func duplicateOf(name string, existing Photo) *UploadResult {
	logging.Info("Duplicate upload %s matches photo %s", name, existing.ID)
	return &UploadResult{Status: StatusDuplicate, Photo: existing.withURLs()}
}

// ImportOptions describes a file adopted from outside the library.
type ImportOptions struct {
	// ID to assign. Empty means a new random id.
	ID string
	// OriginalFilename defaults to the base name of the source.
	OriginalFilename string
	// ThumbnailPath and WebPath point at existing renditions to move into
	// place instead of rendering new ones. Missing files are ignored.
	ThumbnailPath string
	WebPath       string
}

// Import moves the file at src into the library. It behaves like Upload,
// including the duplicate check, except that src is consumed: on success
// or duplicate the source no longer exists.
func (s *Store) Import(ctx context.Context, src string, opts ImportOptions) (*UploadResult, error) {
	hash, err := hashFile(src)
	if err != nil {
		return nil, apperr.IO("hash "+src, err)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.OriginalFilename == "" {
		opts.OriginalFilename = filepath.Base(src)
	}

	res, err := s.ingest(ctx, ingestRequest{
		src:              src,
		hash:             hash,
		id:               opts.ID,
		originalFilename: opts.OriginalFilename,
		thumbnail:        opts.ThumbnailPath,
		web:              opts.WebPath,
	})
	if err != nil {
		return nil, err
	}
	if res.Status == StatusDuplicate {
		if err := filesystem.RemoveIfExists(src); err != nil {
			logging.Warn("Failed to remove duplicate import %s: %v", src, err)
		}
	}
	return res, nil
}

type ingestRequest struct {
	src              string
	hash             string
	id               string
	originalFilename string
	thumbnail, web   string
}

// ingest claims the content hash, moves src into place, renders
// derivatives, extracts metadata and appends the index entry.
func (s *Store) ingest(ctx context.Context, req ingestRequest) (*UploadResult, error) {
	existing, done, err := s.claim(ctx, req.hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return duplicateOf(req.originalFilename, *existing), nil
	}
	defer done()

	if strings.ContainsAny(req.id, `/\`) || req.id == "." || req.id == ".." {
		return nil, apperr.Invalid("invalid photo id %q", req.id)
	}
	if _, ok := s.Lookup(req.id); ok {
		return nil, apperr.Invalid("photo id %s already in use", req.id)
	}

	ext := mediatypes.NormalizeExtension(req.originalFilename)
	p := Photo{
		ID:               req.id,
		ContentHash:      req.hash,
		StoredFilename:   req.id + ext,
		OriginalFilename: req.originalFilename,
		MediaType:        mediatypes.GetFileType(ext),
	}
	dst := filepath.Join(s.dir, p.StoredFilename)

	if err := filesystem.MoveFile(req.src, dst); err != nil {
		return nil, apperr.IO("store original", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return nil, apperr.IO("stat original", err)
	}
	p.ByteSize = info.Size()
	p.CreatedAt = info.ModTime().UTC()

	if p.IsImage() {
		if !s.adoptDerivatives(&p, req.thumbnail, req.web) {
			if err := s.render(ctx, &p); err != nil {
				logging.Warn("Derivatives for %s (%s) not generated: %v", p.ID, p.OriginalFilename, err)
			}
		}
		if s.meta != nil {
			md := s.meta.Extract(ctx, dst)
			p.CapturedAt = md.CapturedAt
			p.CameraMake = md.CameraMake
			p.CameraModel = md.CameraModel
			p.Location = md.Location
			p.LocationName = md.LocationName
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = append(s.photos, p)
	if err := s.saveLocked(ctx); err != nil {
		s.photos = s.photos[:len(s.photos)-1]
		_ = filesystem.RemoveIfExists(dst)
		_ = s.gen.Remove(p.DerivativeName())
		return nil, err
	}
	s.updateMetricsLocked()

	logging.Info("Stored %s as %s (%s, %d bytes)", p.OriginalFilename, p.StoredFilename, p.MediaType, p.ByteSize)
	return &UploadResult{Status: StatusCreated, Photo: p.withURLs()}, nil
}

// claim returns the existing photo for hash, or reserves hash for the
// caller until done is called. Concurrent uploads of the same content wait
// for the first one instead of storing a second copy.
func (s *Store) claim(ctx context.Context, hash string) (*Photo, func(), error) {
	for {
		s.mu.Lock()
		if i := s.indexOfHash(hash); i >= 0 {
			p := s.photos[i]
			s.mu.Unlock()
			return &p, nil, nil
		}
		wait, busy := s.pending[hash]
		if !busy {
			ch := make(chan struct{})
			s.pending[hash] = ch
			s.mu.Unlock()
			return nil, func() {
				s.mu.Lock()
				delete(s.pending, hash)
				s.mu.Unlock()
				close(ch)
			}, nil
		}
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// adoptDerivatives moves pre-rendered renditions into place. It reports
// false unless both were present and moved.
func (s *Store) adoptDerivatives(p *Photo, thumbnail, web string) bool {
	if thumbnail == "" || web == "" || !filesystem.FileExists(thumbnail) || !filesystem.FileExists(web) {
		return false
	}
	thumbDst, webDst := s.gen.Paths(p.DerivativeName())
	if err := filesystem.MoveFile(thumbnail, thumbDst); err != nil {
		logging.Warn("Failed to move thumbnail for %s: %v", p.ID, err)
		return false
	}
	if err := filesystem.MoveFile(web, webDst); err != nil {
		logging.Warn("Failed to move web image for %s: %v", p.ID, err)
		return false
	}
	return true
}

// render regenerates the derivatives of p with its recorded edits.
func (s *Store) render(ctx context.Context, p *Photo) error {
	return s.renderWith(ctx, p, p.Edits())
}

func (s *Store) renderWith(ctx context.Context, p *Photo, edits media.Edits) error {
	return s.pool.Do(ctx, func() error {
		_, err := s.gen.Generate(s.OriginalPath(p), p.DerivativeName(), edits)
		return err
	})
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

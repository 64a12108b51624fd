package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"photo-kiosk/internal/filesystem"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

// Derivative quality and size defaults.
const (
	DefaultWebMaxEdge       = 1280
	DefaultThumbnailMaxEdge = 400
	WebQualityResized       = 75
	WebQualityOriginalSize  = 85
	ThumbnailQuality        = 70
)

// ErrCropOutOfBounds is returned when a crop rectangle does not lie inside
// the oriented original.
var ErrCropOutOfBounds = errors.New("crop rectangle outside image bounds")

// Rect is a crop rectangle in pixels of the EXIF-oriented original, before
// any rotation edit.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Edits describes the non-destructive edits applied when rendering
// derivatives. The crop is applied first, then the clockwise rotation.
type Edits struct {
	Rotation int
	Crop     *Rect
}

// Config configures a Generator.
type Config struct {
	ThumbnailDir     string
	WebDir           string
	WebMaxEdge       int
	ThumbnailMaxEdge int
}

// Result describes the derivatives written by Generate.
type Result struct {
	ThumbnailPath string
	WebPath       string
	// Width and Height of the edited source before downscaling.
	Width  int
	Height int
}

// Generator renders the thumbnail and web derivatives of library originals.
type Generator struct {
	cfg Config
}

// NewGenerator creates the derivative directories and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.WebMaxEdge <= 0 {
		cfg.WebMaxEdge = DefaultWebMaxEdge
	}
	if cfg.ThumbnailMaxEdge <= 0 {
		cfg.ThumbnailMaxEdge = DefaultThumbnailMaxEdge
	}
	for _, dir := range []string{cfg.ThumbnailDir, cfg.WebDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create derivative directory %s: %w", dir, err)
		}
	}
	logging.Debug("Derivative generator: web %dpx -> %s, thumbnails %dpx -> %s",
		cfg.WebMaxEdge, cfg.WebDir, cfg.ThumbnailMaxEdge, cfg.ThumbnailDir)
	return &Generator{cfg: cfg}, nil
}

// Paths returns where the derivatives named name live.
func (g *Generator) Paths(name string) (thumbnail, web string) {
	return filepath.Join(g.cfg.ThumbnailDir, name), filepath.Join(g.cfg.WebDir, name)
}

// Remove deletes both derivatives named name. Missing files are ignored.
func (g *Generator) Remove(name string) error {
	thumb, web := g.Paths(name)
	return errors.Join(filesystem.RemoveIfExists(thumb), filesystem.RemoveIfExists(web))
}

// Generate renders both derivatives of originalPath under name, applying
// edits. It always starts from the original, so repeated edits never
// compound re-encoding loss, and it overwrites earlier derivatives.
func (g *Generator) Generate(originalPath, name string, edits Edits) (*Result, error) {
	src, err := loadSource(originalPath)
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues("web", "error").Inc()
		metrics.DerivativeGenerationsTotal.WithLabelValues("thumbnail", "error").Inc()
		return nil, err
	}

	img, err := applyEdits(src, edits)
	if err != nil {
		return nil, err
	}
	flat := Flatten(img)

	thumbPath, webPath := g.Paths(name)

	web, err := g.stage("web", webPath, func(w io.Writer) error {
		img, resized := FitWithin(flat, g.cfg.WebMaxEdge)
		quality := WebQualityOriginalSize
		if resized {
			quality = WebQualityResized
		}
		return encodeJPEG(w, img, quality)
	})
	if err != nil {
		return nil, err
	}
	defer web.Discard()

	thumb, err := g.stage("thumbnail", thumbPath, func(w io.Writer) error {
		img, _ := FitWithin(flat, g.cfg.ThumbnailMaxEdge)
		return encodeJPEG(w, img, ThumbnailQuality)
	})
	if err != nil {
		return nil, err
	}
	defer thumb.Discard()

	// Both renditions are complete; only now replace the previous pair.
	if err := web.Commit(); err != nil {
		return nil, fmt.Errorf("replace web derivative: %w", err)
	}
	if err := thumb.Commit(); err != nil {
		return nil, fmt.Errorf("replace thumbnail derivative: %w", err)
	}

	b := flat.Bounds()
	logging.Debug("Derivatives generated for %s (%dx%d, rotation %d)", name, b.Dx(), b.Dy(), edits.Rotation)
	return &Result{ThumbnailPath: thumbPath, WebPath: webPath, Width: b.Dx(), Height: b.Dy()}, nil
}

func (g *Generator) stage(variant, path string, encode func(io.Writer) error) (*filesystem.Staged, error) {
	start := time.Now()
	st, err := filesystem.Stage(path, 0o644, encode)
	metrics.DerivativeGenerationDuration.WithLabelValues(variant).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(variant, "error").Inc()
		return nil, fmt.Errorf("write %s derivative: %w", variant, err)
	}
	metrics.DerivativeGenerationsTotal.WithLabelValues(variant, "success").Inc()
	return st, nil
}

// applyEdits crops then rotates clockwise. Crop coordinates refer to the
// full-size original and are scaled when the source was shrunk on decode.
func applyEdits(src *source, edits Edits) (image.Image, error) {
	img := src.img

	if edits.Crop != nil {
		r, err := scaledCrop(*edits.Crop, src.scale, img.Bounds())
		if err != nil {
			return nil, err
		}
		img = imaging.Crop(img, r)
	}

	switch ((edits.Rotation % 360) + 360) % 360 {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}
	return img, nil
}

func scaledCrop(c Rect, scale float64, bounds image.Rectangle) (image.Rectangle, error) {
	if c.Width <= 0 || c.Height <= 0 || c.X < 0 || c.Y < 0 {
		return image.Rectangle{}, ErrCropOutOfBounds
	}

	// Bounds of the full-size original, recovered from the decoded size.
	fullW := int(float64(bounds.Dx())/scale + 0.5)
	fullH := int(float64(bounds.Dy())/scale + 0.5)
	if c.X+c.Width > fullW || c.Y+c.Height > fullH {
		return image.Rectangle{}, ErrCropOutOfBounds
	}

	r := image.Rect(
		int(float64(c.X)*scale),
		int(float64(c.Y)*scale),
		int(float64(c.X+c.Width)*scale+0.5),
		int(float64(c.Y+c.Height)*scale+0.5),
	).Add(bounds.Min).Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, ErrCropOutOfBounds
	}
	return r, nil
}

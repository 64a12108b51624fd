package media

import (
	"fmt"
	"image"
	"math"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

// Originals larger than either bound are shrunk while decoding. At 4 bytes
// per pixel the pixel bound keeps one decoded original near 80MB.
const (
	MaxImageDimension = 4096
	MaxImagePixels    = 20_000_000
)

// ImageDimensions is the stored size of an image, before EXIF orientation.
type ImageDimensions struct {
	Width  int
	Height int
	Format string
}

func (d ImageDimensions) LongEdge() int {
	return max(d.Width, d.Height)
}

// GetImageDimensions reads only the image header.
func GetImageDimensions(path string) (*ImageDimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	return &ImageDimensions{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// constrainedSize fits width x height inside maxDimension on both axes and
// maxPixels in area, keeping the aspect ratio. The bool reports whether any
// shrinking was needed.
func constrainedSize(width, height, maxDimension, maxPixels int) (int, int, bool) {
	w, h := width, height
	if long := max(w, h); long > maxDimension {
		w = w * maxDimension / long
		h = h * maxDimension / long
	}
	if area := w * h; area > maxPixels {
		f := math.Sqrt(float64(maxPixels) / float64(area))
		w = int(float64(w) * f)
		h = int(float64(h) * f)
	}
	if w == width && h == height {
		return width, height, false
	}
	return max(w, 1), max(h, 1), true
}

// source is an EXIF-oriented original ready for cropping and resizing.
// scale maps original pixel coordinates onto img and is below 1 only when
// the original was shrunk while decoding.
type source struct {
	img   image.Image
	scale float64
}

func openOriented(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return img, nil
}

// loadSource decodes path with EXIF orientation applied. Oversized originals
// are shrunk, through libvips when available since it can reduce a JPEG
// during decode instead of after it.
func loadSource(path string) (*source, error) {
	dims, err := GetImageDimensions(path)
	if err != nil {
		logging.Debug("No header dimensions for %s (%v), decoding directly", path, err)
		dims = &ImageDimensions{Format: "unknown"}
	}

	edge, shrink := 0, false
	if dims.LongEdge() > 0 {
		var w, h int
		w, h, shrink = constrainedSize(dims.Width, dims.Height, MaxImageDimension, MaxImagePixels)
		edge = max(w, h)
	}

	if !shrink {
		img, err := openOriented(path)
		if err != nil {
			return nil, err
		}
		metrics.DerivativeDecodeByFormat.WithLabelValues(dims.Format, "imaging").Inc()
		return &source{img: img, scale: 1}, nil
	}

	logging.Info("Decoding %s (%dx%d) at long edge %d", path, dims.Width, dims.Height, edge)
	img, decoder, err := decodeShrunk(path, edge)
	if err != nil {
		return nil, err
	}
	metrics.DerivativeDecodeByFormat.WithLabelValues(dims.Format, decoder).Inc()

	// Orientation can swap the axes but not the long edge.
	b := img.Bounds()
	return &source{img: img, scale: float64(max(b.Dx(), b.Dy())) / float64(dims.LongEdge())}, nil
}

// decodeShrunk returns path decoded and oriented with its long edge at edge,
// along with the decoder that produced it.
func decodeShrunk(path string, edge int) (image.Image, string, error) {
	if IsVipsAvailable() {
		img, err := LoadImageWithVips(path, edge)
		if err == nil {
			return img, "vips", nil
		}
		logging.Warn("vips decode failed for %s, falling back: %v", path, err)
	}

	full, err := openOriented(path)
	if err != nil {
		return nil, "", err
	}
	if b := full.Bounds(); b.Dx() < b.Dy() {
		return imaging.Resize(full, 0, edge, imaging.Lanczos), "imaging", nil
	}
	return imaging.Resize(full, edge, 0, imaging.Lanczos), "imaging", nil
}

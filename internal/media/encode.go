package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
)

// Flatten composites img onto an opaque white canvas. Transparent PNG,
// WebP and GIF sources would otherwise encode to JPEG with black
// backgrounds.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// FitWithin shrinks img so its long edge is at most maxEdge. It never
// upscales; the second return value reports whether a resize happened.
func FitWithin(img image.Image, maxEdge int) (image.Image, bool) {
	b := img.Bounds()
	if b.Dx() <= maxEdge && b.Dy() <= maxEdge {
		return img, false
	}
	return imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos), true
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return nil
}

// ResizeJPEG decodes data, applies EXIF orientation, flattens it, fits it
// within maxEdge and returns it JPEG-encoded at quality. It is used for the
// remote cache variants, which never touch the library.
func ResizeJPEG(data []byte, maxEdge, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	fitted, _ := FitWithin(Flatten(img), maxEdge)

	var buf bytes.Buffer
	if err := encodeJPEG(&buf, fitted, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

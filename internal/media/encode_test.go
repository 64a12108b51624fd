package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestFitWithin(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 800, 400))

	out, resized := FitWithin(img, 1000)
	if resized || out != image.Image(img) {
		t.Error("FitWithin() resized an image already inside the bound")
	}

	out, resized = FitWithin(img, 200)
	if !resized {
		t.Fatal("FitWithin() did not resize")
	}
	if b := out.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("FitWithin() = %dx%d, want 200x100", b.Dx(), b.Dy())
	}
}

func TestFlatten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(1, 0, color.NRGBA{R: 255, A: 255})

	flat := Flatten(img)
	if got := flat.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("transparent pixel = %v, want white", got)
	}
	if got := flat.NRGBAAt(1, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("opaque pixel = %v, want red", got)
	}
}

func TestResizeJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1200, 600))
	var in bytes.Buffer
	if err := jpeg.Encode(&in, src, nil); err != nil {
		t.Fatal(err)
	}

	out, err := ResizeJPEG(in.Bytes(), 300, 80)
	if err != nil {
		t.Fatalf("ResizeJPEG() error = %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" || cfg.Width != 300 || cfg.Height != 150 {
		t.Errorf("ResizeJPEG() = %s %dx%d, want jpeg 300x150", format, cfg.Width, cfg.Height)
	}

	if _, err := ResizeJPEG([]byte("nope"), 300, 80); err == nil {
		t.Error("ResizeJPEG() accepted invalid input")
	}
}

package media

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createTestImage writes a gradient image so that resizes and crops can be
// told apart from a solid fill.
func createTestImage(t *testing.T, path string, width, height int, format string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image file: %v", err)
	}
	defer f.Close()

	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(f, img)
	default:
		t.Fatalf("Unsupported test image format: %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func TestGetImageDimensions(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name   string
		width  int
		height int
		format string
	}{
		{"Small JPEG", 100, 100, "jpeg"},
		{"Landscape JPEG", 640, 480, "jpeg"},
		{"Portrait PNG", 200, 300, "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name+"."+tt.format)
			createTestImage(t, path, tt.width, tt.height, tt.format)

			dims, err := GetImageDimensions(path)
			if err != nil {
				t.Fatalf("GetImageDimensions() error = %v", err)
			}
			if dims.Width != tt.width || dims.Height != tt.height {
				t.Errorf("GetImageDimensions() = %dx%d, want %dx%d", dims.Width, dims.Height, tt.width, tt.height)
			}
			if dims.Format != tt.format {
				t.Errorf("Format = %q, want %q", dims.Format, tt.format)
			}
			if dims.LongEdge() != max(tt.width, tt.height) {
				t.Errorf("LongEdge() = %d", dims.LongEdge())
			}
		})
	}
}

func TestGetImageDimensionsErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := GetImageDimensions(filepath.Join(tmpDir, "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}

	bogus := filepath.Join(tmpDir, "bogus.jpg")
	if err := os.WriteFile(bogus, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := GetImageDimensions(bogus); err == nil {
		t.Error("expected error for non-image file")
	}
}

func TestConstrainedSize(t *testing.T) {
	tests := []struct {
		name              string
		width, height     int
		maxDim, maxPixels int
		wantW, wantH      int
		wantShrink        bool
	}{
		{"within limits", 1000, 800, 4096, 20_000_000, 1000, 800, false},
		{"wide over dimension", 8000, 4000, 4096, 20_000_000, 4096, 2048, true},
		{"tall over dimension", 3000, 6000, 4096, 20_000_000, 2048, 4096, true},
		{"over pixel budget", 4000, 4000, 4096, 4_000_000, 2000, 2000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, shrink := constrainedSize(tt.width, tt.height, tt.maxDim, tt.maxPixels)
			if w != tt.wantW || h != tt.wantH || shrink != tt.wantShrink {
				t.Errorf("constrainedSize() = (%d, %d, %v), want (%d, %d, %v)", w, h, shrink, tt.wantW, tt.wantH, tt.wantShrink)
			}
		})
	}
}

func TestLoadSourceSmallImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.png")
	createTestImage(t, path, 320, 240, "png")

	src, err := loadSource(path)
	if err != nil {
		t.Fatalf("loadSource() error = %v", err)
	}
	if src.scale != 1 {
		t.Errorf("scale = %v, want 1", src.scale)
	}
	if b := src.img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("decoded size = %dx%d, want 320x240", b.Dx(), b.Dy())
	}
}

func TestLoadSourceShrinksLargeImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.jpg")
	createTestImage(t, path, 5000, 1000, "jpeg")

	src, err := loadSource(path)
	if err != nil {
		t.Fatalf("loadSource() error = %v", err)
	}
	b := src.img.Bounds()
	if max(b.Dx(), b.Dy()) > MaxImageDimension {
		t.Errorf("decoded long edge = %d, want <= %d", max(b.Dx(), b.Dy()), MaxImageDimension)
	}
	want := float64(MaxImageDimension) / 5000
	if diff := src.scale - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("scale = %v, want %v", src.scale, want)
	}
}

func TestLoadSourceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSource(path); err == nil {
		t.Error("loadSource() succeeded on garbage input")
	}
}

package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	dir := t.TempDir()
	g, err := NewGenerator(Config{
		ThumbnailDir: filepath.Join(dir, "thumbnails"),
		WebDir:       filepath.Join(dir, "web"),
	})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return g
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	dims, err := GetImageDimensions(path)
	if err != nil {
		t.Fatalf("GetImageDimensions(%s) error = %v", path, err)
	}
	if dims.Format != "jpeg" {
		t.Errorf("%s format = %q, want jpeg", path, dims.Format)
	}
	return dims.Width, dims.Height
}

func TestNewGeneratorDefaults(t *testing.T) {
	g := newTestGenerator(t)
	if g.cfg.WebMaxEdge != DefaultWebMaxEdge || g.cfg.ThumbnailMaxEdge != DefaultThumbnailMaxEdge {
		t.Errorf("defaults = %d/%d", g.cfg.WebMaxEdge, g.cfg.ThumbnailMaxEdge)
	}
	for _, dir := range []string{g.cfg.ThumbnailDir, g.cfg.WebDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", dir)
		}
	}
}

func TestGenerateSizes(t *testing.T) {
	tests := []struct {
		name           string
		width, height  int
		webW, webH     int
		thumbW, thumbH int
	}{
		{"large landscape", 2000, 1000, 1280, 640, 400, 200},
		{"large portrait", 900, 1800, 640, 1280, 200, 400},
		{"medium", 800, 600, 800, 600, 400, 300},
		{"tiny never upscaled", 120, 80, 120, 80, 120, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t)
			orig := filepath.Join(t.TempDir(), "orig.png")
			createTestImage(t, orig, tt.width, tt.height, "png")

			res, err := g.Generate(orig, "abc.jpg", Edits{})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if res.Width != tt.width || res.Height != tt.height {
				t.Errorf("Result size = %dx%d, want %dx%d", res.Width, res.Height, tt.width, tt.height)
			}

			if w, h := decodeSize(t, res.WebPath); w != tt.webW || h != tt.webH {
				t.Errorf("web = %dx%d, want %dx%d", w, h, tt.webW, tt.webH)
			}
			if w, h := decodeSize(t, res.ThumbnailPath); w != tt.thumbW || h != tt.thumbH {
				t.Errorf("thumbnail = %dx%d, want %dx%d", w, h, tt.thumbW, tt.thumbH)
			}

			thumb, web := g.Paths("abc.jpg")
			if res.ThumbnailPath != thumb || res.WebPath != web {
				t.Errorf("paths = %s, %s; want %s, %s", res.ThumbnailPath, res.WebPath, thumb, web)
			}
		})
	}
}

func TestGenerateRotation(t *testing.T) {
	tests := []struct {
		rotation     int
		wantW, wantH int
	}{
		{0, 300, 200},
		{90, 200, 300},
		{180, 300, 200},
		{270, 200, 300},
		{-90, 200, 300},
	}

	orig := filepath.Join(t.TempDir(), "orig.png")
	createTestImage(t, orig, 300, 200, "png")

	for _, tt := range tests {
		g := newTestGenerator(t)
		res, err := g.Generate(orig, "r.jpg", Edits{Rotation: tt.rotation})
		if err != nil {
			t.Fatalf("Generate(rotation %d) error = %v", tt.rotation, err)
		}
		if w, h := decodeSize(t, res.WebPath); w != tt.wantW || h != tt.wantH {
			t.Errorf("rotation %d: web = %dx%d, want %dx%d", tt.rotation, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestGenerateRotationDirection(t *testing.T) {
	// Left half red, right half blue. A clockwise quarter turn puts red on top.
	img := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 100 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	orig := filepath.Join(t.TempDir(), "halves.png")
	writePNG(t, orig, img)

	g := newTestGenerator(t)
	res, err := g.Generate(orig, "d.jpg", Edits{Rotation: 90})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	out := openImage(t, res.WebPath)
	top := out.At(50, 10)
	r, _, b, _ := top.RGBA()
	if r < b {
		t.Errorf("top of rotated image is not red: %v", top)
	}
}

func TestGenerateCrop(t *testing.T) {
	orig := filepath.Join(t.TempDir(), "orig.png")
	createTestImage(t, orig, 1000, 800, "png")

	g := newTestGenerator(t)
	res, err := g.Generate(orig, "c.jpg", Edits{Crop: &Rect{X: 100, Y: 100, Width: 500, Height: 300}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Width != 500 || res.Height != 300 {
		t.Errorf("cropped size = %dx%d, want 500x300", res.Width, res.Height)
	}
	if w, h := decodeSize(t, res.WebPath); w != 500 || h != 300 {
		t.Errorf("web = %dx%d, want 500x300", w, h)
	}

	// Crop happens before rotation.
	res, err = g.Generate(orig, "c.jpg", Edits{Rotation: 90, Crop: &Rect{X: 0, Y: 0, Width: 500, Height: 300}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Width != 300 || res.Height != 500 {
		t.Errorf("crop+rotate size = %dx%d, want 300x500", res.Width, res.Height)
	}
}

func TestGenerateCropOutOfBounds(t *testing.T) {
	orig := filepath.Join(t.TempDir(), "orig.png")
	createTestImage(t, orig, 400, 300, "png")

	crops := []Rect{
		{X: 0, Y: 0, Width: 401, Height: 10},
		{X: 350, Y: 0, Width: 100, Height: 10},
		{X: -1, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: 0, Width: 0, Height: 10},
	}

	g := newTestGenerator(t)
	for _, c := range crops {
		c := c
		if _, err := g.Generate(orig, "x.jpg", Edits{Crop: &c}); !errors.Is(err, ErrCropOutOfBounds) {
			t.Errorf("Generate(crop %+v) error = %v, want ErrCropOutOfBounds", c, err)
		}
	}

	thumb, web := g.Paths("x.jpg")
	for _, p := range []string{thumb, web} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s written despite invalid crop", p)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	orig := filepath.Join(t.TempDir(), "orig.jpg")
	createTestImage(t, orig, 1600, 900, "jpeg")

	g := newTestGenerator(t)
	first, err := g.Generate(orig, "a.jpg", Edits{})
	if err != nil {
		t.Fatal(err)
	}
	want, _ := os.ReadFile(first.WebPath)

	// Rotate, then reset: output must match a fresh render.
	if _, err := g.Generate(orig, "a.jpg", Edits{Rotation: 90}); err != nil {
		t.Fatal(err)
	}
	second, err := g.Generate(orig, "a.jpg", Edits{})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(second.WebPath)
	if !bytes.Equal(got, want) {
		t.Error("re-rendered web derivative differs from the original render")
	}
}

func TestGenerateFlattensTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	orig := filepath.Join(t.TempDir(), "clear.png")
	writePNG(t, orig, img)

	g := newTestGenerator(t)
	res, err := g.Generate(orig, "t.jpg", Edits{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	out := openImage(t, res.ThumbnailPath)
	r, gr, b, _ := out.At(32, 32).RGBA()
	if r>>8 < 240 || gr>>8 < 240 || b>>8 < 240 {
		t.Errorf("transparent pixel rendered as (%d,%d,%d), want white", r>>8, gr>>8, b>>8)
	}
}

func TestGenerateMissingOriginal(t *testing.T) {
	g := newTestGenerator(t)
	if _, err := g.Generate(filepath.Join(t.TempDir(), "nope.jpg"), "n.jpg", Edits{}); err == nil {
		t.Error("Generate() succeeded for a missing original")
	}
}

func TestGenerateKeepsPairWhenThumbnailFails(t *testing.T) {
	orig := filepath.Join(t.TempDir(), "orig.png")
	createTestImage(t, orig, 300, 200, "png")

	g := newTestGenerator(t)
	res, err := g.Generate(orig, "pair.jpg", Edits{})
	if err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(res.WebPath)
	if err != nil {
		t.Fatal(err)
	}

	// Without its directory the thumbnail cannot be written.
	if err := os.RemoveAll(g.cfg.ThumbnailDir); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(orig, "pair.jpg", Edits{Rotation: 90}); err == nil {
		t.Fatal("Generate() succeeded without a thumbnail directory")
	}

	after, err := os.ReadFile(res.WebPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("web derivative replaced although the thumbnail failed")
	}
	if w, h := decodeSize(t, res.WebPath); w != 300 || h != 200 {
		t.Errorf("web = %dx%d, want the unrotated 300x200", w, h)
	}
	entries, err := os.ReadDir(g.cfg.WebDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("web dir has %d entries, want 1 (staged file left behind)", len(entries))
	}
}

func TestRemove(t *testing.T) {
	orig := filepath.Join(t.TempDir(), "orig.png")
	createTestImage(t, orig, 50, 50, "png")

	g := newTestGenerator(t)
	res, err := g.Generate(orig, "rm.jpg", Edits{})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Remove("rm.jpg"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	for _, p := range []string{res.ThumbnailPath, res.WebPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", p)
		}
	}
	if err := g.Remove("rm.jpg"); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestScaledCrop(t *testing.T) {
	bounds := image.Rect(0, 0, 500, 250)
	r, err := scaledCrop(Rect{X: 100, Y: 50, Width: 400, Height: 200}, 0.5, bounds)
	if err != nil {
		t.Fatalf("scaledCrop() error = %v", err)
	}
	if want := image.Rect(50, 25, 250, 125); r != want {
		t.Errorf("scaledCrop() = %v, want %v", r, want)
	}

	if _, err := scaledCrop(Rect{X: 900, Y: 0, Width: 200, Height: 10}, 0.5, bounds); !errors.Is(err, ErrCropOutOfBounds) {
		t.Errorf("scaledCrop() out of bounds error = %v", err)
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func openImage(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

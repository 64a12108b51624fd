package mediatypes

import (
	"testing"
)

func TestNormalizeExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"lowercase jpg", "photo.jpg", ".jpg"},
		{"uppercase JPG", "IMG_0042.JPG", ".jpg"},
		{"video", "clip.MOV", ".mov"},
		{"no extension", "photo", ".jpg"},
		{"trailing dot", "photo.", ".jpg"},
		{"unknown but clean", "scan.heic", ".heic"},
		{"path components ignored", "dir/sub/pic.png", ".png"},
		{"odd characters", "evil.j$g", ".jpg"},
		{"too long", "archive.verylongext", ".jpg"},
		{"empty", "", ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeExtension(tt.filename); got != tt.want {
				t.Errorf("NormalizeExtension(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestGetFileType(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want FileType
	}{
		{"JPEG image", ".jpg", FileTypeImage},
		{"PNG image", ".png", FileTypeImage},
		{"MP4 video", ".mp4", FileTypeVideo},
		{"MOV video", ".mov", FileTypeVideo},
		{"WebM video", ".webm", FileTypeVideo},
		{"WebP is an image", ".webp", FileTypeImage},
		{"Unknown extension", ".xyz", FileTypeImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetFileType(tt.ext); got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".JPEG", "image/jpeg"},
		{".webp", "image/webp"},
		{".mov", "video/quicktime"},
		{".mp4", "video/mp4"},
		{".xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := GetMimeType(tt.ext); got != tt.want {
			t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestIsLegacyMedia(t *testing.T) {
	for name, want := range map[string]bool{
		"0b5e7c1a.jpg": true,
		"IMG_1.JPEG":   true,
		"clip.MOV":     true,
		"scan.png":     true,
		"anim.gif":     false,
		"notes.txt":    false,
		"noext":        false,
	} {
		if got := IsLegacyMedia(name); got != want {
			t.Errorf("IsLegacyMedia(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEveryFormatHasMimeType(t *testing.T) {
	for ext, f := range formats {
		if f.mime == "" || GetMimeType(ext) == octetStream {
			t.Errorf("%s has no MIME type", ext)
		}
	}
}

package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType is the coarse kind of a library file.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// DefaultExtension replaces missing or malformed upload extensions.
const DefaultExtension = ".jpg"

const octetStream = "application/octet-stream"

type format struct {
	mime   string
	kind   FileType
	// legacy formats may appear in the per-album layout being migrated.
	legacy bool
}

var formats = map[string]format{
	".jpg":  {"image/jpeg", FileTypeImage, true},
	".jpeg": {"image/jpeg", FileTypeImage, true},
	".png":  {"image/png", FileTypeImage, true},
	".webp": {"image/webp", FileTypeImage, true},
	".gif":  {"image/gif", FileTypeImage, false},
	".bmp":  {"image/bmp", FileTypeImage, false},
	".tif":  {"image/tiff", FileTypeImage, false},
	".tiff": {"image/tiff", FileTypeImage, false},
	".heic": {"image/heic", FileTypeImage, false},
	".heif": {"image/heif", FileTypeImage, false},

	".mp4":  {"video/mp4", FileTypeVideo, true},
	".mov":  {"video/quicktime", FileTypeVideo, true},
	".m4v":  {"video/x-m4v", FileTypeVideo, false},
	".mkv":  {"video/x-matroska", FileTypeVideo, false},
	".webm": {"video/webm", FileTypeVideo, false},
	".avi":  {"video/x-msvideo", FileTypeVideo, false},
	".wmv":  {"video/x-ms-wmv", FileTypeVideo, false},
	".mpg":  {"video/mpeg", FileTypeVideo, false},
	".mpeg": {"video/mpeg", FileTypeVideo, false},
	".3gp":  {"video/3gpp", FileTypeVideo, false},
}

// NormalizeExtension returns the lower case extension of filename with its
// dot. An extension that is missing, longer than five characters, or not
// purely letters and digits becomes DefaultExtension.
func NormalizeExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 6 {
		return DefaultExtension
	}
	if strings.ContainsFunc(ext[1:], func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		return DefaultExtension
	}
	return ext
}

// GetFileType classifies a normalized extension. Unknown extensions are
// images.
func GetFileType(ext string) FileType {
	if f, ok := formats[ext]; ok {
		return f.kind
	}
	return FileTypeImage
}

// IsLegacyMedia reports whether name has an extension the legacy album
// layout stored. The check ignores case.
func IsLegacyMedia(name string) bool {
	return formats[strings.ToLower(filepath.Ext(name))].legacy
}

// GetMimeType returns the MIME type for ext, ignoring case, or
// application/octet-stream.
func GetMimeType(ext string) string {
	if f, ok := formats[strings.ToLower(ext)]; ok {
		return f.mime
	}
	return octetStream
}

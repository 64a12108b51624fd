package library

import (
	"time"

	"photo-kiosk/internal/exifmeta"
	"photo-kiosk/internal/media"
	"photo-kiosk/internal/mediatypes"
)

// GeoPoint is a decimal latitude/longitude pair.
type GeoPoint = exifmeta.GeoPoint

// CropRect is a crop rectangle in pixels of the EXIF-oriented original.
type CropRect = media.Rect

// Photo is one original media item in the library.
type Photo struct {
	ID               string              `json:"id"`
	ContentHash      string              `json:"contentHash"`
	StoredFilename   string              `json:"storedFilename"`
	OriginalFilename string              `json:"originalFilename"`
	ByteSize         int64               `json:"byteSize"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        *time.Time          `json:"updatedAt,omitempty"`
	MediaType        mediatypes.FileType `json:"mediaType"`
	CapturedAt       string              `json:"capturedAt,omitempty"`
	CameraMake       string              `json:"cameraMake,omitempty"`
	CameraModel      string              `json:"cameraModel,omitempty"`
	Location         *GeoPoint           `json:"location,omitempty"`
	LocationName     string              `json:"locationName,omitempty"`
	Description      string              `json:"description,omitempty"`
	RotationDegrees  int                 `json:"rotationDegrees,omitempty"`
	Crop             *CropRect           `json:"crop,omitempty"`

	// Locators, filled in on read.
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	WebURL       string `json:"webUrl,omitempty"`
}

// IsImage reports whether the photo has derivatives.
func (p *Photo) IsImage() bool {
	return p.MediaType == mediatypes.FileTypeImage
}

// DerivativeName is the file name shared by the thumbnail and web
// renditions of a photo.
func (p *Photo) DerivativeName() string {
	return p.ID + ".jpg"
}

// Edits returns the derivative edits currently recorded on the photo.
func (p *Photo) Edits() media.Edits {
	return media.Edits{Rotation: p.RotationDegrees, Crop: p.Crop}
}

// Variant names one of the files served for a photo.
type Variant string

const (
	VariantOriginal  Variant = "original"
	VariantThumbnail Variant = "thumbnail"
	VariantWeb       Variant = "web"
)

// ParseVariant maps a request path element to a Variant. The empty string
// is the original.
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case "", VariantOriginal:
		return VariantOriginal, true
	case VariantThumbnail, VariantWeb:
		return Variant(s), true
	}
	return "", false
}

// FileURL is the locator of a photo's file for the given variant.
func FileURL(id string, v Variant) string {
	if v == VariantOriginal {
		return "/api/library/files/" + id
	}
	return "/api/library/files/" + id + "/" + string(v)
}

func (p *Photo) withURLs() Photo {
	out := *p
	out.URL = FileURL(p.ID, VariantOriginal)
	out.ThumbnailURL, out.WebURL = "", ""
	if p.IsImage() {
		out.ThumbnailURL = FileURL(p.ID, VariantThumbnail)
		out.WebURL = FileURL(p.ID, VariantWeb)
	}
	return out
}

// PhotoUpdate holds the metadata fields a caller may override. Nil fields
// are left unchanged.
type PhotoUpdate struct {
	Description  *string `json:"description"`
	CapturedAt   *string `json:"capturedAt"`
	LocationName *string `json:"locationName"`
}

// UploadStatus tells a new photo apart from a repeated upload.
type UploadStatus string

const (
	StatusCreated   UploadStatus = "created"
	StatusDuplicate UploadStatus = "duplicate"
)

// UploadResult is returned by Upload and Import.
type UploadResult struct {
	Status UploadStatus `json:"status"`
	Photo  Photo        `json:"photo"`
}

// Stats summarizes the library for metrics and the CLI.
type Stats struct {
	Images int
	Videos int
	Bytes  int64
}

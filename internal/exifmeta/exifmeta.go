package exifmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

// exifTimeLayout is the fixed textual format EXIF uses for DateTimeOriginal.
const exifTimeLayout = "2006:01:02 15:04:05"

// CapturedAtLayout is the format a successfully parsed capture time is
// stored in. EXIF carries no zone offset, so neither does this.
const CapturedAtLayout = "2006-01-02T15:04:05"

// GeoPoint is a decimal latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Info holds the metadata found in an image. Empty fields were absent.
type Info struct {
	CapturedAt   string
	CameraMake   string
	CameraModel  string
	Location     *GeoPoint
	LocationName string
}

// Resolver turns coordinates into a place name, returning "" when unknown.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) string
}

// Extractor reads EXIF metadata and, when a resolver is configured, names
// the GPS location.
type Extractor struct {
	resolver Resolver
}

// NewExtractor returns an Extractor. resolver may be nil.
func NewExtractor(resolver Resolver) *Extractor {
	return &Extractor{resolver: resolver}
}

// Extract returns whatever metadata can be read from the image at path.
func (e *Extractor) Extract(ctx context.Context, path string) Info {
	f, err := os.Open(path)
	if err != nil {
		logging.Debug("exif: cannot open %s: %v", path, err)
		metrics.MetadataExtractionsTotal.WithLabelValues("error").Inc()
		return Info{}
	}
	defer f.Close()

	info, err := Decode(f)
	if err != nil {
		if errors.Is(err, errNoExif) {
			metrics.MetadataExtractionsTotal.WithLabelValues("no_exif").Inc()
		} else {
			logging.Debug("exif: %s: %v", path, err)
			metrics.MetadataExtractionsTotal.WithLabelValues("error").Inc()
		}
		return Info{}
	}
	metrics.MetadataExtractionsTotal.WithLabelValues("success").Inc()

	if info.Location != nil && e.resolver != nil {
		info.LocationName = e.resolver.Resolve(ctx, info.Location.Lat, info.Location.Lon)
	}
	return *info
}

var errNoExif = errors.New("no exif data")

// Decode parses the EXIF block of r. Individual fields that cannot be read
// are skipped.
func Decode(r io.Reader) (*Info, error) {
	x, err := exif.Decode(r)
	if x == nil {
		if err == nil || errors.Is(err, io.EOF) || strings.Contains(err.Error(), "failed to find exif") {
			return nil, errNoExif
		}
		return nil, err
	}
	if err != nil && exif.IsCriticalError(err) {
		return nil, err
	}

	info := &Info{}
	if s, ok := stringTag(x, exif.DateTimeOriginal); ok {
		info.CapturedAt = ParseCaptureTime(s)
	}
	if s, ok := stringTag(x, exif.Make); ok {
		info.CameraMake = s
	}
	if s, ok := stringTag(x, exif.Model); ok {
		info.CameraModel = s
	}
	if p, err := gpsPoint(x); err == nil {
		info.Location = p
	} else {
		logging.Debug("exif: no usable GPS block: %v", err)
	}
	return info, nil
}

// ParseCaptureTime converts an EXIF timestamp to CapturedAtLayout. Values
// that do not parse are returned unchanged rather than dropped.
func ParseCaptureTime(raw string) string {
	t, err := time.Parse(exifTimeLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(CapturedAtLayout)
}

// DMSToDecimal converts degrees, minutes and seconds to decimal degrees,
// negated for the southern and western hemispheres.
func DMSToDecimal(deg, min, sec float64, ref string) float64 {
	v := deg + min/60 + sec/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -v
	}
	return v
}

func stringTag(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	return s, s != ""
}

func gpsPoint(x *exif.Exif) (*GeoPoint, error) {
	lat, err := dmsTag(x, exif.GPSLatitude)
	if err != nil {
		return nil, err
	}
	lon, err := dmsTag(x, exif.GPSLongitude)
	if err != nil {
		return nil, err
	}
	latRef, _ := stringTag(x, exif.GPSLatitudeRef)
	lonRef, _ := stringTag(x, exif.GPSLongitudeRef)

	return &GeoPoint{
		Lat: DMSToDecimal(lat[0], lat[1], lat[2], latRef),
		Lon: DMSToDecimal(lon[0], lon[1], lon[2], lonRef),
	}, nil
}

func dmsTag(x *exif.Exif, name exif.FieldName) ([3]float64, error) {
	var out [3]float64
	tag, err := x.Get(name)
	if err != nil {
		return out, err
	}
	if tag.Count < 3 || tag.Format() != tiff.RatVal {
		return out, fmt.Errorf("%s: want 3 rationals", name)
	}
	for i := range out {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return out, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		if den == 0 {
			return out, fmt.Errorf("%s[%d]: zero denominator", name, i)
		}
		out[i] = float64(num) / float64(den)
	}
	return out, nil
}

// Package exifmeta extracts capture time, camera and GPS metadata from
// image files. Extraction is best effort: missing or malformed EXIF data
// only leaves fields empty and never fails the caller.
package exifmeta

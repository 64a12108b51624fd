// Package mediatypes classifies library files by extension.
//
// Any extension that is not a known video format counts as an image, and
// names without a usable extension are stored as ".jpg".
//
//	ext := mediatypes.NormalizeExtension("IMG_0042.JPG") // ".jpg"
//	mediatypes.GetFileType(ext)                         // FileTypeImage
//	mediatypes.GetMimeType(".mov")                      // "video/quicktime"
package mediatypes

// Package media renders display derivatives of library originals.
//
// A Generator writes two JPEG renditions per original: a web rendition whose
// long edge is capped at the configured threshold (re-encoded at higher
// quality without resizing when the original already fits) and a thumbnail
// rendered from the same decoded original, never from the web rendition.
// Sources are decoded with EXIF orientation applied and flattened onto white
// before encoding. Originals above MaxImageDimension or MaxImagePixels are
// shrunk during decode, through libvips when InitVips has been called.
//
// Crop and rotate edits are applied to the decoded original on every
// generation; derivatives are written with a temp file and rename.
package media

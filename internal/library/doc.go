// Package library is the content-addressed photo library. Originals are
// stored once per SHA-256 digest under "{id}{ext}" and never modified;
// thumbnail and web derivatives are rendered from them and may be
// regenerated with rotation and crop edits at any time.
//
// The index of all photos is a single document held in a docstore backend.
// A Store keeps it in memory and guards every read-modify-write with one
// mutex.
package library

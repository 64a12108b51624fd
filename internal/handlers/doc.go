// Package handlers provides the HTTP handlers for the photo kiosk API.
//
// It includes handlers for:
//   - Library uploads, edits and file serving
//   - Albums and the slideshow feed
//   - The remote photo cache and sync trigger
//   - Health checks, version info and metrics
package handlers

/*
Package filesystem provides resilient filesystem operations for the photo
library and caches.

Reads go through StatWithRetry and OpenWithRetry, which retry NFS stale
file handle errors (ESTALE) with exponential backoff and pass every other
error straight through. Writes go through WriteAtomic and WriteFileAtomic,
which write to a temporary file in the destination directory and rename it
into place so that readers never see a partial original, derivative or
document.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	err = filesystem.WriteAtomic(dst, 0o644, func(w io.Writer) error {
	    return jpeg.Encode(w, img, &jpeg.Options{Quality: 75})
	})

# Metrics

Instrument installs an Observer together with a VolumeResolver that labels
paths by the configured directory containing them ("library", "cache",
"database"). Until then nothing is recorded.
*/
package filesystem

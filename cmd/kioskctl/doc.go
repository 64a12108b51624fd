// Command kioskctl runs maintenance jobs against a photo kiosk data
// directory. It reads the same environment (and .env file) as the server.
//
// Usage:
//
//	kioskctl regenerate [--workers N]   Rebuild thumbnails and web images
//	kioskctl migrate                    Import legacy album directories
//	kioskctl cache stats                Show remote cache size
//	kioskctl cache evict [--quota MB]   Trim the remote cache to a quota
//	kioskctl cache clear [--yes]        Delete every cached remote photo
//
// Stop the server before running regenerate or migrate against the JSON
// storage backend; the SQLite backend tolerates concurrent access.
package main

// Package database provides the SQLite-backed document store.
//
// Library, album and remote cache state are small JSON documents kept in a
// single "documents" table keyed by name, so Database satisfies
// docstore.Backend. A "metadata" key/value table records housekeeping
// timestamps such as the last remote sync. The connection runs in WAL mode
// with a busy timeout, and every query is bounded by a five second timeout.
package database

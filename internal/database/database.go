package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"photo-kiosk/internal/docstore"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

const (
	queryTimeout  = 5 * time.Second
	vacuumTimeout = time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	name       TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT
);
`

// Database is the SQLite document store. Documents live in one table keyed
// by their docstore key; a second table holds small service markers.
type Database struct {
	db   *sql.DB
	path string
	// SQLite allows a single writer; readers share the lock.
	mu sync.RWMutex
}

var _ docstore.Backend = (*Database)(nil)

// New opens the database file at path, creating it and its schema if
// needed. The parent directory must exist.
func New(ctx context.Context, path string) (*Database, error) {
	logging.Info("Database path: %s", path)
	checkFileModes(path)

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, path: path}
	if err := d.exec(ctx, schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			logging.Error("close database after failed setup: %v", cerr)
		}
		return nil, fmt.Errorf("initialize database %s: %w", path, err)
	}
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// exec runs a write under the writer lock with the default timeout.
func (d *Database) exec(ctx context.Context, query string, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := d.db.ExecContext(ctx, query, args...)
	return err
}

// scanOne reads a single column of a single row into dest.
func (d *Database) scanOne(ctx context.Context, dest any, query string, args ...any) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return d.db.QueryRowContext(ctx, query, args...).Scan(dest)
}

func (d *Database) Load(ctx context.Context, key string) ([]byte, error) {
	if err := docstore.ValidateKey(key); err != nil {
		return nil, err
	}
	var body []byte
	err := d.scanOne(ctx, &body, `SELECT body FROM documents WHERE name = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	return body, err
}

func (d *Database) Save(ctx context.Context, key string, body []byte) error {
	if err := docstore.ValidateKey(key); err != nil {
		return err
	}
	return d.exec(ctx, `
		INSERT INTO documents (name, body, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		key, body)
}

func (d *Database) Delete(ctx context.Context, key string) error {
	return d.exec(ctx, `DELETE FROM documents WHERE name = ?`, key)
}

// Keys returns the document keys starting with prefix in lexical order.
// The comparison uses substr so '_' and '%' in prefix stay literal.
func (d *Database) Keys(ctx context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM documents WHERE substr(name, 1, ?) = ? ORDER BY name`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Vacuum rebuilds the database file, returning the bytes reclaimed.
func (d *Database) Vacuum(ctx context.Context) (int64, error) {
	before := d.fileSize("")

	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, vacuumTimeout)
	defer cancel()
	if _, err := d.db.ExecContext(ctx, `VACUUM`); err != nil {
		return 0, err
	}
	return before - d.fileSize(""), nil
}

func (d *Database) fileSize(suffix string) int64 {
	info, err := os.Stat(d.path + suffix)
	if err != nil {
		return 0
	}
	return info.Size()
}

// UpdateDBMetrics publishes the size of the database file and its WAL
// and shared memory companions.
func (d *Database) UpdateDBMetrics() {
	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		metrics.DBSizeBytes.WithLabelValues(label).Set(float64(d.fileSize(suffix)))
	}
}

// checkFileModes restores owner write permission on database files copied
// in read-only, which would otherwise fail on the first write.
func checkFileModes(path string) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		logging.Warn("Database directory: %v", err)
		return
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		if err := os.Chmod(p, info.Mode().Perm()|0o200); err != nil {
			logging.Error("Database file %s is read-only and could not be fixed: %v", p, err)
			continue
		}
		logging.Warn("Database file %s was read-only (%v), added owner write", p, info.Mode())
	}
}

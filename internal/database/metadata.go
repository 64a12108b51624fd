package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	keyLastRemoteSync    = "last_remote_sync"
	keyMigrationFinished = "legacy_migration_finished"
)

// GetMetadata returns the value stored under key, or sql.ErrNoRows.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	if err := d.scanOne(ctx, &value, `SELECT value FROM metadata WHERE key = ?`, key); err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	return d.exec(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
}

// timestamp reads an RFC 3339 marker. Missing and cleared markers read as
// the zero time.
func (d *Database) timestamp(ctx context.Context, key string) (time.Time, error) {
	value, err := d.GetMetadata(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil || value == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

func (d *Database) setTimestamp(ctx context.Context, key string, t time.Time) error {
	value := ""
	if !t.IsZero() {
		value = t.UTC().Format(time.RFC3339)
	}
	return d.SetMetadata(ctx, key, value)
}

// LastSyncRun returns when the remote sync last completed.
func (d *Database) LastSyncRun(ctx context.Context) (time.Time, error) {
	return d.timestamp(ctx, keyLastRemoteSync)
}

func (d *Database) SetLastSyncRun(ctx context.Context, t time.Time) error {
	return d.setTimestamp(ctx, keyLastRemoteSync, t)
}

// MigrationFinished returns when the legacy album migration completed.
func (d *Database) MigrationFinished(ctx context.Context) (time.Time, error) {
	return d.timestamp(ctx, keyMigrationFinished)
}

func (d *Database) SetMigrationFinished(ctx context.Context, t time.Time) error {
	return d.setTimestamp(ctx, keyMigrationFinished, t)
}

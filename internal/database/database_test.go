package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"photo-kiosk/internal/docstore"
	"photo-kiosk/internal/metrics"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "kiosk.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewCreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"documents", "metadata"} {
		var n int
		err := db.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestNewRejectsMissingDirectory(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "kiosk.db"))
	if err == nil {
		t.Error("New() succeeded with a missing parent directory")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.Load(ctx, docstore.KeyLibraryIndex); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	if err := db.Save(ctx, docstore.KeyLibraryIndex, []byte(`[]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := db.Save(ctx, docstore.KeyLibraryIndex, []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Save(overwrite) error = %v", err)
	}

	body, err := db.Load(ctx, docstore.KeyLibraryIndex)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(body) != `[{"id":"a"}]` {
		t.Errorf("Load() = %s, want overwritten body", body)
	}

	if err := db.Delete(ctx, docstore.KeyLibraryIndex); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Load(ctx, docstore.KeyLibraryIndex); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("Load(after delete) error = %v, want ErrNotFound", err)
	}
}

func TestKeysPrefix(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, k := range []string{"albums/b", "albums/a", "albums/active", "albums_x/z", "library/index"} {
		if err := db.Save(ctx, k, []byte(`{}`)); err != nil {
			t.Fatalf("Save(%s) error = %v", k, err)
		}
	}

	keys, err := db.Keys(ctx, docstore.AlbumPrefix)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	want := []string{"albums/a", "albums/active", "albums/b"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestSaveRejectsInvalidKey(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Save(context.Background(), "../escape", []byte(`{}`)); !errors.Is(err, docstore.ErrInvalidKey) {
		t.Errorf("Save() error = %v, want ErrInvalidKey", err)
	}
}

func TestJSONHelpersOverSQLite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	type doc struct {
		IDs []string `json:"ids"`
	}
	if err := docstore.SaveJSON(ctx, db, docstore.KeyActiveAlbums, doc{IDs: []string{"x", "y"}}); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}

	var got doc
	found, err := docstore.LoadJSON(ctx, db, docstore.KeyActiveAlbums, &got)
	if err != nil || !found {
		t.Fatalf("LoadJSON() = (%v, %v)", found, err)
	}
	if len(got.IDs) != 2 || got.IDs[1] != "y" {
		t.Errorf("LoadJSON() = %+v", got)
	}
}

func TestUpdateDBMetrics(t *testing.T) {
	db := setupTestDB(t)
	db.UpdateDBMetrics()
	if got := testutil.ToFloat64(metrics.DBSizeBytes.WithLabelValues("main")); got <= 0 {
		t.Errorf("main size = %v, want > 0", got)
	}
}

func TestVacuum(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	big := make([]byte, 256<<10)
	for i := range 8 {
		if err := db.Save(ctx, fmt.Sprintf("albums/%d", i), big); err != nil {
			t.Fatal(err)
		}
	}
	for i := range 8 {
		if err := db.Delete(ctx, fmt.Sprintf("albums/%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := db.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum() error = %v", err)
	}
	keys, err := db.Keys(ctx, "")
	if err != nil || len(keys) != 0 {
		t.Errorf("Keys() after vacuum = %v, %v", keys, err)
	}
}

func TestCheckFileModesRestoresWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.db")
	if err := os.WriteFile(path, nil, 0o444); err != nil {
		t.Fatal(err)
	}
	checkFileModes(path)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		t.Errorf("mode = %v, want owner write", info.Mode())
	}
}

func TestMetadataTimestamps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.LastSyncRun(ctx)
	if err != nil {
		t.Fatalf("LastSyncRun() error = %v", err)
	}
	if !got.IsZero() {
		t.Errorf("LastSyncRun() = %v, want zero", got)
	}

	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if err := db.SetLastSyncRun(ctx, now); err != nil {
		t.Fatalf("SetLastSyncRun() error = %v", err)
	}
	got, err = db.LastSyncRun(ctx)
	if err != nil {
		t.Fatalf("LastSyncRun() error = %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("LastSyncRun() = %v, want %v", got, now)
	}

	if err := db.SetMigrationFinished(ctx, now); err != nil {
		t.Fatalf("SetMigrationFinished() error = %v", err)
	}
	if got, _ := db.MigrationFinished(ctx); !got.Equal(now) {
		t.Errorf("MigrationFinished() = %v, want %v", got, now)
	}

	if err := db.SetLastSyncRun(ctx, time.Time{}); err != nil {
		t.Fatalf("SetLastSyncRun(zero) error = %v", err)
	}
	if got, _ := db.LastSyncRun(ctx); !got.IsZero() {
		t.Errorf("LastSyncRun() after clear = %v, want zero", got)
	}
}

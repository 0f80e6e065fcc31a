package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tripcore/internal/infra/catalog"
	"tripcore/pkg/domain"
)

func newSQLiteStore(t *testing.T) *catalog.SQLite {
	t.Helper()
	store, err := catalog.NewSQLite(filepath.Join(t.TempDir(), "backups", "catalog.db"))
	if err != nil {
		t.Fatalf("open sqlite catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	deletedAt := time.Date(2024, 7, 2, 9, 30, 0, 0, time.UTC)

	rec, err := store.Add(ctx, sampleRecord("trip-sql", domain.BackupTrip, deletedAt))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OriginalID != "trip-sql" || !got.DeletedAt.Equal(deletedAt) {
		t.Fatalf("record mismatch: %+v", got)
	}
	if got.SizeBytes != 128 || got.Checksum != "abc123" || got.Reason != "user request" {
		t.Fatalf("columns lost: %+v", got)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	store := newSQLiteStore(t)
	_, err := store.Get(context.Background(), "absent")
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.Code != domain.CodeBackupNotFound {
		t.Fatalf("expected BACKUP_NOT_FOUND, got %v", err)
	}
}

func TestSQLiteListFilterAndOrder(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.Add(ctx, sampleRecord("trip-a", domain.BackupTrip, base)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, sampleRecord("trip-a", domain.BackupCost, base.Add(time.Hour))); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, sampleRecord("trip-b", domain.BackupTrip, base.Add(2*time.Hour))); err != nil {
		t.Fatalf("add: %v", err)
	}

	recs, err := store.List(ctx, catalog.Filter{OriginalID: "trip-a"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].Kind != domain.BackupCost {
		t.Fatalf("expected cost backup first (newest), got %+v", recs)
	}

	trips, err := store.List(ctx, catalog.Filter{Kind: domain.BackupTrip})
	if err != nil {
		t.Fatalf("list by kind: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trip backups, got %d", len(trips))
	}
}

func TestSQLitePathAccessor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.NewSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.Path() != path {
		t.Fatalf("path %q, want %q", store.Path(), path)
	}
}

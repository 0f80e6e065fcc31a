package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"tripcore/internal/infra/catalog"
	"tripcore/internal/infra/catalog/testutil"
	"tripcore/pkg/domain"
)

func newPostgresStore(t *testing.T) (*catalog.Postgres, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := catalog.OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("expected pgx driver, got %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := catalog.NewPostgres("postgres://stub/tripcore")
	if err != nil {
		t.Fatalf("open postgres catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestPostgresEnsuresTableOnOpen(t *testing.T) {
	_, conn := newPostgresStore(t)
	found := false
	for _, q := range conn.Execs {
		if strings.Contains(q, "CREATE TABLE IF NOT EXISTS backup_records") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected DDL on open, got %v", conn.Execs)
	}
}

func TestPostgresAddGetList(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()
	base := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	first, err := store.Add(ctx, sampleRecord("trip-pg", domain.BackupTrip, base))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, sampleRecord("trip-pg", domain.BackupCost, base.Add(time.Hour))); err != nil {
		t.Fatalf("add second: %v", err)
	}

	got, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OriginalID != "trip-pg" || got.Kind != domain.BackupTrip {
		t.Fatalf("record mismatch: %+v", got)
	}

	recs, err := store.List(ctx, catalog.Filter{OriginalID: "trip-pg"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].Kind != domain.BackupCost {
		t.Fatalf("expected newest first, got %+v", recs)
	}

	if _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatalf("expected not found for missing id")
	}
	var nf domain.NotFoundError
	if _, err := store.Get(ctx, "missing"); !errors.As(err, &nf) {
		t.Fatalf("expected typed not-found, got %v", err)
	}
}

func TestPostgresOpenFailuresPropagate(t *testing.T) {
	restore := catalog.OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return nil, fmt.Errorf("boom")
	})
	defer restore()
	if _, err := catalog.NewPostgres("dsn"); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestPostgresPingFailurePropagates(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := catalog.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := catalog.NewPostgres("dsn"); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripcore/internal/infra/catalog"
	"tripcore/pkg/domain"
)

func sampleRecord(originalID string, kind domain.BackupKind, deletedAt time.Time) catalog.Record {
	return catalog.Record{
		OriginalID: originalID,
		Kind:       kind,
		Title:      "Trip " + originalID,
		DeletedAt:  deletedAt,
		ArchiveKey: "deleted-" + string(kind) + "-" + originalID + ".json",
		SizeBytes:  128,
		Checksum:   "abc123",
		Reason:     "user request",
	}
}

func TestMemoryAddStampsAndGet(t *testing.T) {
	store := catalog.NewMemory()
	ctx := context.Background()

	rec, err := store.Add(ctx, sampleRecord("trip-1", domain.BackupTrip, time.Now().UTC()))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("expected stamped record, got %+v", rec)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OriginalID != "trip-1" || got.Checksum != "abc123" {
		t.Fatalf("record mismatch: %+v", got)
	}
}

func TestMemoryGetMissingIsTypedNotFound(t *testing.T) {
	store := catalog.NewMemory()
	_, err := store.Get(context.Background(), "nope")
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.Code != domain.CodeBackupNotFound {
		t.Fatalf("expected BACKUP_NOT_FOUND, got %v", err)
	}
}

func TestMemoryListFiltersAndOrdersNewestFirst(t *testing.T) {
	store := catalog.NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, spec := range []struct {
		original string
		kind     domain.BackupKind
	}{
		{"trip-1", domain.BackupTrip},
		{"trip-1", domain.BackupCost},
		{"trip-2", domain.BackupTrip},
	} {
		if _, err := store.Add(ctx, sampleRecord(spec.original, spec.kind, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	all, err := store.List(ctx, catalog.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || !all[0].DeletedAt.After(all[2].DeletedAt) {
		t.Fatalf("expected newest first, got %+v", all)
	}

	byTrip, err := store.List(ctx, catalog.Filter{OriginalID: "trip-1"})
	if err != nil {
		t.Fatalf("list by original: %v", err)
	}
	if len(byTrip) != 2 {
		t.Fatalf("expected 2 records for trip-1, got %d", len(byTrip))
	}

	costs, err := store.List(ctx, catalog.Filter{OriginalID: "trip-1", Kind: domain.BackupCost})
	if err != nil {
		t.Fatalf("list by kind: %v", err)
	}
	if len(costs) != 1 || costs[0].Kind != domain.BackupCost {
		t.Fatalf("expected 1 cost record, got %+v", costs)
	}
}

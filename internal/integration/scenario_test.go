// Package integration exercises the full trip lifecycle against real
// infrastructure: a version 1 file on disk is migrated, validated, linked,
// corrupted, recovered, deleted, and restored through the service facade with
// the sqlite catalog and filesystem archive wired in.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tripcore/internal/audit"
	"tripcore/internal/core"
	archivefs "tripcore/internal/infra/archive/fs"
	"tripcore/internal/infra/catalog"
	"tripcore/internal/infra/persistence/fsjson"
	"tripcore/internal/migrate"
	"tripcore/pkg/domain"
)

func TestTripLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tripPath := filepath.Join(dir, "trip-trip-old.json")

	seedLegacyTrip(t, tripPath)

	arch, err := archivefs.New(filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	cat, err := catalog.NewSQLite(filepath.Join(dir, "backups", "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer func() { _ = cat.Close() }()
	rec := audit.NewMemoryRecorder()

	store, err := fsjson.New(dir, migrate.New(),
		fsjson.WithArchive(arch),
		fsjson.WithBackupHook(cat),
		fsjson.WithAudit(rec),
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	svc := core.NewService(store,
		core.WithCatalog(cat),
		core.WithArchive(arch),
		core.WithAudit(rec),
	)

	// Loading migrates the version 1 file in place: the embedded accommodation
	// is extracted and the expense reference gains its location-side link.
	doc, err := svc.LoadTrip(ctx, "trip-old")
	if err != nil {
		t.Fatalf("load legacy: %v", err)
	}
	if doc.SchemaVersion != domain.CurrentSchemaVersion {
		t.Fatalf("schema version %d after load", doc.SchemaVersion)
	}
	if len(doc.Accommodations) != 1 || doc.Accommodations[0].Name != "Casa do Rio" {
		t.Fatalf("accommodation not extracted: %+v", doc.Accommodations)
	}
	accID := doc.Accommodations[0].ID
	if n := len(doc.Itinerary.Locations[0].CostTrackingLinks); n != 1 {
		t.Fatalf("expected synced location link, got %d", n)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	issues, err := domain.ValidateDocumentJSON(data)
	if err != nil || len(issues) != 0 {
		t.Fatalf("migrated document fails schema validation: %v %v", issues, err)
	}

	// Relink the expense from its location to the extracted accommodation.
	v, err := svc.ValidateLink(ctx, "trip-old", "exp-1", &domain.TravelItemRef{Type: domain.TravelItemAccommodation, ID: accID})
	if err != nil || !v.OK() {
		t.Fatalf("validate link: %v %+v", err, v)
	}
	doc, err = svc.LinkExpense(ctx, "trip-old", "exp-1", &domain.TravelItemRef{Type: domain.TravelItemAccommodation, ID: accID})
	if err != nil {
		t.Fatalf("link expense: %v", err)
	}
	if len(doc.Itinerary.Locations[0].CostTrackingLinks) != 0 {
		t.Fatalf("old location link survived relink")
	}
	if len(doc.Accommodations[0].CostTrackingLinks) != 1 {
		t.Fatalf("accommodation link missing after relink")
	}
	if ref := doc.Finance.Expenses[0].TravelReference; ref == nil || ref.AccommodationID != accID {
		t.Fatalf("expense reference not rewired: %+v", ref)
	}

	// Growing the itinerary produces a public update and persists it.
	updated := domain.CloneDocument(doc)
	updated.Itinerary.Locations = append(updated.Itinerary.Locations, domain.Location{
		ID: "loc-2", Name: "Porto",
		Date:              time.Date(2020, 5, 5, 0, 0, 0, 0, time.UTC),
		AccommodationIDs:  []string{},
		CostTrackingLinks: []domain.CostTrackingLink{},
	})
	doc, err = svc.UpdateItinerary(ctx, "trip-old", core.ItineraryUpdate{
		Itinerary:      updated.Itinerary,
		Accommodations: updated.Accommodations,
	})
	if err != nil {
		t.Fatalf("update itinerary: %v", err)
	}
	if len(doc.PublicUpdates) == 0 || doc.PublicUpdates[0].Message != "Added location Porto" {
		t.Fatalf("public updates: %+v", doc.PublicUpdates)
	}

	// Corrupt the live file; the next load quarantines the damaged bytes and
	// recovers the document from the longest valid prefix.
	raw, err := os.ReadFile(tripPath)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}
	if err := os.WriteFile(tripPath, append(raw, []byte("\x00\x00{{garbage")...), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	doc, err = svc.LoadTrip(ctx, "trip-old")
	if err != nil {
		t.Fatalf("load corrupted: %v", err)
	}
	if len(doc.Accommodations[0].CostTrackingLinks) != 1 {
		t.Fatalf("recovered document lost the expense link")
	}
	if entries := rec.ByOp(audit.OpCorruptionRecovery); len(entries) != 1 {
		t.Fatalf("expected one corruption recovery audit entry, got %d", len(entries))
	}
	corrupted, err := cat.List(ctx, catalog.Filter{Kind: domain.BackupCorrupted})
	if err != nil || len(corrupted) != 1 {
		t.Fatalf("quarantine record: %v (%v)", corrupted, err)
	}
	if !strings.HasSuffix(corrupted[0].ArchiveKey, ".json.corrupt") {
		t.Fatalf("quarantine key: %q", corrupted[0].ArchiveKey)
	}

	// Delete writes a trip backup before removing the file.
	if err := svc.DeleteTrip(ctx, "trip-old", "lifecycle test"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(tripPath); !os.IsNotExist(err) {
		t.Fatalf("live file still present after delete: %v", err)
	}
	var notFound domain.NotFoundError
	if _, err := svc.LoadTrip(ctx, "trip-old"); !errors.As(err, &notFound) {
		t.Fatalf("expected not-found error after delete, got %v", err)
	}

	backups, err := svc.ListBackups(ctx, catalog.Filter{OriginalID: "trip-old", Kind: domain.BackupTrip})
	if err != nil || len(backups) != 1 {
		t.Fatalf("trip backups: %v (%v)", backups, err)
	}
	backup := backups[0]

	if _, ok, err := svc.VerifyBackup(ctx, backup.ID); err != nil || !ok {
		t.Fatalf("verify backup: ok=%v err=%v", ok, err)
	}

	restored, err := svc.RestoreTrip(ctx, backup.ID, false)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID != "trip-old" || restored.BackupMetadata != nil {
		t.Fatalf("restored document: id=%q metadata=%+v", restored.ID, restored.BackupMetadata)
	}

	final, err := svc.LoadTrip(ctx, "trip-old")
	if err != nil {
		t.Fatalf("load after restore: %v", err)
	}
	if len(final.Accommodations) != 1 || len(final.Accommodations[0].CostTrackingLinks) != 1 {
		t.Fatalf("restored trip lost state: %+v", final.Accommodations)
	}
	if len(final.Itinerary.Locations) != 2 {
		t.Fatalf("restored trip lost locations: %d", len(final.Itinerary.Locations))
	}
}

func seedLegacyTrip(t *testing.T, path string) {
	t.Helper()
	legacy := map[string]any{
		"schemaVersion": 1,
		"id":            "trip-old",
		"title":         "Douro valley",
		"startDate":     "2020-05-01T00:00:00Z",
		"endDate":       "2020-05-10T00:00:00Z",
		"createdAt":     "2020-04-01T00:00:00Z",
		"updatedAt":     "2020-04-01T00:00:00Z",
		"itinerary": map[string]any{
			"locations": []any{map[string]any{
				"id":   "loc-1",
				"name": "Pinhão",
				"coordinates": map[string]any{
					"lat": 41.19, "lng": -7.54,
				},
				"date":              "2020-05-01T00:00:00Z",
				"accommodationIds":  []any{},
				"costTrackingLinks": []any{},
				"accommodation": map[string]any{
					"name":    "Casa do Rio",
					"address": "Cais da Ribeira 3",
				},
			}},
			"routes": []any{},
		},
		"accommodations": []any{},
		"finance": map[string]any{
			"overallBudget": 1500,
			"currency":      "EUR",
			"expenses": []any{map[string]any{
				"id":          "exp-1",
				"date":        "2020-05-02T00:00:00Z",
				"amount":      120,
				"currency":    "EUR",
				"category":    "accommodation",
				"description": "Two nights",
				"expenseType": "actual",
				"travelReference": map[string]any{
					"type":       "location",
					"locationId": "loc-1",
				},
			}},
		},
	}
	data, err := json.MarshalIndent(legacy, "", "  ")
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("seed legacy file: %v", err)
	}
}

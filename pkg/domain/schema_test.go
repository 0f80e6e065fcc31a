package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"tripcore/pkg/domain"
)

func TestValidateDocumentJSONAcceptsCurrentShape(t *testing.T) {
	doc := domain.TripDocument{
		SchemaVersion: domain.CurrentSchemaVersion,
		ID:            domain.NewID(),
		Title:         "Japan 2024",
		StartDate:     time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
		Accommodations: []domain.Accommodation{
			{ID: "acc-1", Name: "Ryokan", LocationID: "loc-1"},
		},
		Finance: &domain.Finance{
			Currency: "JPY",
			Expenses: []domain.Expense{
				{ID: "exp-1", Amount: 12000, Currency: "JPY", Category: domain.CategoryFood, ExpenseType: domain.ExpenseActual},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	problems, err := domain.ValidateDocumentJSON(data)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("expected valid document, got violations: %v", problems)
	}
}

func TestValidateDocumentJSONRejectsMissingRequiredFields(t *testing.T) {
	problems, err := domain.ValidateDocumentJSON([]byte(`{"title":"no id or version"}`))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) == 0 {
		t.Fatalf("expected violations for document without id and schemaVersion")
	}
}

func TestValidateDocumentJSONAcceptsLegacyV1Shape(t *testing.T) {
	raw := []byte(`{
		"schemaVersion": 1,
		"id": "trip-old",
		"title": "Legacy",
		"itinerary": {
			"locations": [{
				"id": "loc-1",
				"name": "Rome",
				"accommodation": {"name": "Pensione Roma"},
				"accommodationIds": [],
				"costTrackingLinks": []
			}],
			"routes": []
		},
		"accommodations": []
	}`)
	problems, err := domain.ValidateDocumentJSON(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("legacy shape must stay schema-valid, got: %v", problems)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		id := domain.NewID()
		if id == "" || seen[id] {
			t.Fatalf("expected fresh unique id, got %q", id)
		}
		seen[id] = true
	}
}

package core_test

import (
	"testing"
	"time"

	"tripcore/internal/core"
	"tripcore/pkg/domain"
)

func boundaryDocument() *domain.TripDocument {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	return &domain.TripDocument{
		SchemaVersion: domain.CurrentSchemaVersion,
		ID:            "tripA",
		Title:         "Trip A",
		Itinerary: &domain.Itinerary{
			Locations: []domain.Location{{ID: "loc-A", Name: "Athens", Date: start}},
			Routes: []domain.Route{{
				ID: "route-A", From: "Athens", To: "Delphi",
				SubRoutes: []domain.Route{{ID: "sub-A", From: "Athens", To: "Thebes"}},
			}},
		},
		Accommodations: []domain.Accommodation{{ID: "acc-A", Name: "Hotel Plaka", LocationID: "loc-A"}},
		Finance: &domain.Finance{
			Currency: "EUR",
			Expenses: []domain.Expense{{ID: "exp-A", Amount: 25, Currency: "EUR",
				Category: domain.CategoryFood, ExpenseType: domain.ExpenseActual, Date: start}},
		},
	}
}

func TestValidateExpenseLinkAccepts(t *testing.T) {
	doc := boundaryDocument()
	for _, item := range []*domain.TravelItemRef{
		{Type: domain.TravelItemLocation, ID: "loc-A"},
		{Type: domain.TravelItemAccommodation, ID: "acc-A"},
		{Type: domain.TravelItemRoute, ID: "route-A"},
		{Type: domain.TravelItemRoute, ID: "sub-A"},
		nil, // unlink
	} {
		if v := core.ValidateExpenseLink(doc, "exp-A", item); !v.OK() {
			t.Fatalf("expected valid link for %+v, got %v", item, v.Messages())
		}
	}
}

func TestValidateExpenseLinkCrossTripTravelItem(t *testing.T) {
	doc := boundaryDocument()
	v := core.ValidateExpenseLink(doc, "exp-A", &domain.TravelItemRef{
		Type: domain.TravelItemLocation, ID: "loc-nonexistent",
	})
	if v.OK() || v.Code() != domain.CodeCrossTripTravelItem {
		t.Fatalf("expected CROSS_TRIP_TRAVEL_ITEM, got %v", v.Code())
	}
	msgs := v.Messages()
	if len(msgs) != 1 || msgs[0] != "Travel item loc-nonexistent not found in trip tripA" {
		t.Fatalf("unexpected messages: %v", msgs)
	}
}

func TestValidateExpenseLinkCrossTripExpenseTakesPriority(t *testing.T) {
	doc := boundaryDocument()
	v := core.ValidateExpenseLink(doc, "exp-B", &domain.TravelItemRef{
		Type: domain.TravelItemLocation, ID: "loc-nonexistent",
	})
	if v.Code() != domain.CodeCrossTripExpense {
		t.Fatalf("expected CROSS_TRIP_EXPENSE priority, got %v", v.Code())
	}
	if len(v.Violations()) != 2 {
		t.Fatalf("expected both violations reported, got %+v", v.Violations())
	}
	msgs := v.Messages()
	if msgs[0] != "Expense exp-B not found in trip tripA" {
		t.Fatalf("unexpected expense message: %q", msgs[0])
	}
}

func TestValidateExpenseLinkUnlinkMissingExpense(t *testing.T) {
	doc := boundaryDocument()
	v := core.ValidateExpenseLink(doc, "exp-B", nil)
	if v.Code() != domain.CodeExpenseNotFound {
		t.Fatalf("expected EXPENSE_NOT_FOUND for unlink, got %v", v.Code())
	}
}

func TestValidateExpenseLinkChecksSubRoutesOnly(t *testing.T) {
	doc := boundaryDocument()
	v := core.ValidateExpenseLink(doc, "exp-A", &domain.TravelItemRef{
		Type: domain.TravelItemRoute, ID: "route-missing",
	})
	if v.OK() || v.Code() != domain.CodeCrossTripTravelItem {
		t.Fatalf("expected travel item violation, got %v", v.Code())
	}
}

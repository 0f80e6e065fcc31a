package migrate

import (
	"fmt"

	"tripcore/internal/audit"
	"tripcore/pkg/domain"
)

// placeholderLocationID reports whether an accommodation's owner reference is
// one of the sentinel values written before the owning location existed.
// Historical files carry both the empty string and the literal "undefined".
func placeholderLocationID(id string) bool {
	return id == "" || id == "undefined"
}

// rebindPlaceholderLocations resolves accommodations tagged with a sentinel
// owner by scanning which location lists the accommodation id. An entity no
// location claims stays orphaned rather than being given an invented owner;
// the condition is recorded so an operator can review it.
func rebindPlaceholderLocations(sc *stepContext, doc *domain.TripDocument) {
	for i := range doc.Accommodations {
		acc := &doc.Accommodations[i]
		if !placeholderLocationID(acc.LocationID) {
			continue
		}
		owner := owningLocation(doc, acc.ID)
		if owner == nil {
			sc.record(audit.Entry{
				Op:         audit.OpOrphanAccommodation,
				EntityKind: "accommodation",
				EntityID:   acc.ID,
				Reason:     fmt.Sprintf("No location lists accommodation %s; left orphaned", acc.ID),
			})
			continue
		}
		acc.LocationID = owner.ID
		sc.record(audit.Entry{
			Op:         audit.OpRebindPlaceholder,
			EntityKind: "accommodation",
			EntityID:   acc.ID,
			RelatedID:  owner.ID,
			Reason:     fmt.Sprintf("Rebound accommodation %s to location %s", acc.ID, owner.ID),
		})
	}
}

func owningLocation(doc *domain.TripDocument, accommodationID string) *domain.Location {
	if doc.Itinerary == nil {
		return nil
	}
	for i := range doc.Itinerary.Locations {
		if containsString(doc.Itinerary.Locations[i].AccommodationIDs, accommodationID) {
			return &doc.Itinerary.Locations[i]
		}
	}
	return nil
}

// recreateMissingAccommodations synthesizes a minimal placeholder entity for
// every accommodation id that locations or expenses still reference but that
// no longer exists, reattaching the expense links that point at it. A
// fabricated stand-in loses less than dropping the references: the name is
// best-effort and the record is flagged through the audit trail for review.
func recreateMissingAccommodations(sc *stepContext, doc *domain.TripDocument) {
	type referent struct {
		locationID string
		expenses   []*domain.Expense
	}
	missing := map[string]*referent{}
	var order []string

	note := func(id string) *referent {
		if id == "" || findAccommodation(doc, id) != nil {
			return nil
		}
		r, ok := missing[id]
		if !ok {
			r = &referent{}
			missing[id] = r
			order = append(order, id)
		}
		return r
	}

	if doc.Itinerary != nil {
		for i := range doc.Itinerary.Locations {
			loc := &doc.Itinerary.Locations[i]
			for _, accID := range loc.AccommodationIDs {
				if r := note(accID); r != nil && r.locationID == "" {
					r.locationID = loc.ID
				}
			}
		}
	}
	if doc.Finance != nil {
		for i := range doc.Finance.Expenses {
			exp := &doc.Finance.Expenses[i]
			ref := exp.TravelReference
			if ref == nil || ref.Type != domain.TravelItemAccommodation {
				continue
			}
			if r := note(ref.AccommodationID); r != nil {
				r.expenses = append(r.expenses, exp)
			}
		}
	}

	for _, id := range order {
		r := missing[id]
		acc := domain.Accommodation{
			ID:         id,
			Name:       recoveredName(r.expenses),
			LocationID: r.locationID,
		}
		for _, exp := range r.expenses {
			desc := exp.TravelReference.Description
			if desc == "" {
				desc = exp.Description
			}
			acc.CostTrackingLinks = append(acc.CostTrackingLinks, domain.CostTrackingLink{ExpenseID: exp.ID, Description: desc})
		}
		doc.Accommodations = append(doc.Accommodations, acc)
		sc.record(audit.Entry{
			Op:         audit.OpRecreateAccommodation,
			EntityKind: "accommodation",
			EntityID:   id,
			RelatedID:  r.locationID,
			Reason:     fmt.Sprintf("Recreated missing accommodation %s referenced by trip data", id),
		})
	}
}

func recoveredName(expenses []*domain.Expense) string {
	for _, exp := range expenses {
		if exp.TravelReference != nil && exp.TravelReference.Description != "" {
			return exp.TravelReference.Description
		}
	}
	for _, exp := range expenses {
		if exp.Description != "" {
			return exp.Description
		}
	}
	return "Recovered accommodation"
}

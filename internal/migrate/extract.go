package migrate

import (
	"fmt"

	"tripcore/internal/audit"
	"tripcore/pkg/domain"
)

// extractEmbeddedAccommodations lifts the v1 embedded accommodation payload
// off its location into a first-class Accommodation entity, rewires the
// location to reference it by id, and moves accommodation-category expense
// links from the location onto the new entity.
//
// The original extraction shipped incomplete: it created the entity but left
// the legacy payload and the expense links on the location, and a later chain
// step had to re-run it. This implementation encodes the final policy and
// recognizes both the pristine v1 shape and the half-extracted one, so it is
// safe to run at any version and is a fixed point after one pass.
func extractEmbeddedAccommodations(sc *stepContext, doc *domain.TripDocument) {
	if doc.Itinerary == nil {
		return
	}
	for i := range doc.Itinerary.Locations {
		loc := &doc.Itinerary.Locations[i]
		if loc.LegacyAccommodation != nil {
			extractOne(sc, doc, loc)
		}
		moveAccommodationLinks(sc, doc, loc)
	}
}

// extractOne converts one location's embedded payload. The entity id is
// derived from the location id so re-running the extraction finds the entity
// it created last time instead of minting a duplicate.
func extractOne(sc *stepContext, doc *domain.TripDocument, loc *domain.Location) {
	legacy := loc.LegacyAccommodation
	accID := derivedAccommodationID(loc.ID)

	if existing := findAccommodation(doc, accID); existing == nil {
		doc.Accommodations = append(doc.Accommodations, domain.Accommodation{
			ID:         accID,
			Name:       legacy.Name,
			LocationID: loc.ID,
			Address:    legacy.Address,
			Notes:      legacy.Notes,
		})
	} else {
		// Half-extracted shape: the entity exists but the payload was never
		// cleared. Backfill fields the buggy run dropped, keep what it wrote.
		if existing.Name == "" {
			existing.Name = legacy.Name
		}
		if existing.Address == "" {
			existing.Address = legacy.Address
		}
		if existing.Notes == "" {
			existing.Notes = legacy.Notes
		}
		if existing.LocationID == "" {
			existing.LocationID = loc.ID
		}
	}

	if !containsString(loc.AccommodationIDs, accID) {
		loc.AccommodationIDs = append(loc.AccommodationIDs, accID)
	}
	loc.LegacyAccommodation = nil

	sc.record(audit.Entry{
		Op:         audit.OpCompleteExtraction,
		EntityKind: "accommodation",
		EntityID:   accID,
		RelatedID:  loc.ID,
		Reason:     fmt.Sprintf("Extracted embedded accommodation from location %s", loc.ID),
	})
}

// moveAccommodationLinks relocates accommodation-category expense links from
// a location to the accommodation it owns. Lodging expenses belong on the
// lodging entity; links still sitting on the location are the signature of an
// incomplete historical extraction.
func moveAccommodationLinks(sc *stepContext, doc *domain.TripDocument, loc *domain.Location) {
	if doc.Finance == nil || len(loc.CostTrackingLinks) == 0 || len(loc.AccommodationIDs) == 0 {
		return
	}
	target := findAccommodation(doc, loc.AccommodationIDs[0])
	if target == nil {
		return
	}
	kept := loc.CostTrackingLinks[:0]
	for _, link := range loc.CostTrackingLinks {
		exp := doc.FindExpense(link.ExpenseID)
		if exp == nil || exp.Category != domain.CategoryAccommodation {
			kept = append(kept, link)
			continue
		}
		if !hasLink(target.CostTrackingLinks, link.ExpenseID) {
			target.CostTrackingLinks = append(target.CostTrackingLinks, link)
		}
		if exp.TravelReference != nil && exp.TravelReference.Type == domain.TravelItemLocation && exp.TravelReference.LocationID == loc.ID {
			exp.TravelReference = domain.NewTravelReference(domain.TravelItemAccommodation, target.ID, target.Name)
		}
		sc.record(audit.Entry{
			Op:         audit.OpCompleteExtraction,
			EntityKind: "link",
			EntityID:   link.ExpenseID,
			RelatedID:  target.ID,
			Reason:     fmt.Sprintf("Moved accommodation expense link %s from location %s to accommodation %s", link.ExpenseID, loc.ID, target.ID),
		})
	}
	loc.CostTrackingLinks = kept
}

func derivedAccommodationID(locationID string) string {
	return locationID + "-accommodation"
}

func findAccommodation(doc *domain.TripDocument, id string) *domain.Accommodation {
	for i := range doc.Accommodations {
		if doc.Accommodations[i].ID == id {
			return &doc.Accommodations[i]
		}
	}
	return nil
}

func hasLink(links []domain.CostTrackingLink, expenseID string) bool {
	for _, l := range links {
		if l.ExpenseID == expenseID {
			return true
		}
	}
	return false
}

func containsString(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

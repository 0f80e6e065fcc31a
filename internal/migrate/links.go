package migrate

import (
	"fmt"

	"tripcore/internal/audit"
	"tripcore/pkg/domain"
)

// linkBearer is one itinerary item that can carry expense links, flattened
// out of the document (sub-routes included).
type linkBearer struct {
	kind  domain.TravelItemType
	id    string
	name  string
	links *[]domain.CostTrackingLink
}

func linkBearers(doc *domain.TripDocument) []linkBearer {
	var out []linkBearer
	if doc.Itinerary != nil {
		for i := range doc.Itinerary.Locations {
			loc := &doc.Itinerary.Locations[i]
			out = append(out, linkBearer{domain.TravelItemLocation, loc.ID, loc.Name, &loc.CostTrackingLinks})
		}
		for i := range doc.Itinerary.Routes {
			out = appendRouteBearers(out, &doc.Itinerary.Routes[i])
		}
	}
	for i := range doc.Accommodations {
		acc := &doc.Accommodations[i]
		out = append(out, linkBearer{domain.TravelItemAccommodation, acc.ID, acc.Name, &acc.CostTrackingLinks})
	}
	return out
}

func appendRouteBearers(out []linkBearer, r *domain.Route) []linkBearer {
	out = append(out, linkBearer{domain.TravelItemRoute, r.ID, r.DisplayName(), &r.CostTrackingLinks})
	for i := range r.SubRoutes {
		out = appendRouteBearers(out, &r.SubRoutes[i])
	}
	return out
}

func findBearer(doc *domain.TripDocument, kind domain.TravelItemType, id string) *linkBearer {
	for _, b := range linkBearers(doc) {
		if b.kind == kind && b.id == id {
			bearer := b
			return &bearer
		}
	}
	return nil
}

// purgeDanglingLinks drops every itinerary-side expense link whose expense no
// longer exists in the finance section. This is the itinerary→expense half of
// referential closure; each removal lands in the audit trail.
func purgeDanglingLinks(sc *stepContext, doc *domain.TripDocument) {
	for _, b := range linkBearers(doc) {
		kept := (*b.links)[:0]
		for _, link := range *b.links {
			if doc.HasExpense(link.ExpenseID) {
				kept = append(kept, link)
				continue
			}
			sc.record(audit.Entry{
				Op:         audit.OpPurgeDanglingLink,
				EntityKind: string(b.kind),
				EntityID:   b.id,
				RelatedID:  link.ExpenseID,
				Reason:     fmt.Sprintf("Removed invalid expense link %s from %s %s", link.ExpenseID, b.kind, b.id),
			})
		}
		*b.links = kept
	}
}

// synchronizeLinks restores the bidirectional pairing between expenses and
// itinerary items after one side drifted:
//
//   - an expense referencing an existing item gets the matching itinerary-side
//     link added when absent;
//   - an expense referencing a location or route that no longer exists loses
//     its reference (missing accommodations are left alone: the recreate
//     policy synthesizes those instead of dropping the evidence);
//   - an itinerary-side link whose expense carries no reference gets the
//     expense side added, described by the item's display name.
//
// One pass reaches a fixed point for any document that was consistent before
// the drift.
func synchronizeLinks(sc *stepContext, doc *domain.TripDocument) {
	if doc.Finance == nil {
		return
	}

	for i := range doc.Finance.Expenses {
		exp := &doc.Finance.Expenses[i]
		ref := exp.TravelReference
		if ref == nil {
			continue
		}
		target := findBearer(doc, ref.Type, ref.TargetID())
		if target == nil {
			if ref.Type == domain.TravelItemAccommodation {
				continue
			}
			sc.record(audit.Entry{
				Op:         audit.OpDropOrphanReference,
				EntityKind: "expense",
				EntityID:   exp.ID,
				RelatedID:  ref.TargetID(),
				Reason:     fmt.Sprintf("Dropped travel reference to missing %s %s from expense %s", ref.Type, ref.TargetID(), exp.ID),
			})
			exp.TravelReference = nil
			continue
		}
		if !hasLink(*target.links, exp.ID) {
			desc := ref.Description
			if desc == "" {
				desc = exp.Description
			}
			*target.links = append(*target.links, domain.CostTrackingLink{ExpenseID: exp.ID, Description: desc})
			sc.record(audit.Entry{
				Op:         audit.OpSyncLink,
				EntityKind: string(target.kind),
				EntityID:   target.id,
				RelatedID:  exp.ID,
				Reason:     fmt.Sprintf("Added missing cost tracking link for expense %s on %s %s", exp.ID, target.kind, target.id),
			})
		}
	}

	for _, b := range linkBearers(doc) {
		for _, link := range *b.links {
			exp := doc.FindExpense(link.ExpenseID)
			if exp == nil || exp.TravelReference != nil {
				continue
			}
			exp.TravelReference = domain.NewTravelReference(b.kind, b.id, b.name)
			sc.record(audit.Entry{
				Op:         audit.OpSyncLink,
				EntityKind: "expense",
				EntityID:   exp.ID,
				RelatedID:  b.id,
				Reason:     fmt.Sprintf("Added missing travel reference to %s %s on expense %s", b.kind, b.id, exp.ID),
			})
		}
	}
}

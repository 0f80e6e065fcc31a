// Package linkindex builds the bidirectional expense/itinerary lookup for one
// trip. The index is read-side tooling over an already loaded, already
// migrated document: it never touches storage, and it is constructed from
// exactly one trip's data, so cross-trip references cannot enter it by
// construction.
package linkindex

import (
	"sync"

	"tripcore/pkg/domain"
)

// Descriptor identifies the itinerary item an expense is linked to, carrying
// the display fields callers render.
type Descriptor struct {
	Kind domain.TravelItemType
	ID   string
	Name string
	// LocationName is set for accommodations only.
	LocationName string
	TripTitle    string
}

// ItemKey addresses one itinerary item for reverse lookup.
type ItemKey struct {
	Kind domain.TravelItemType
	ID   string
}

// Index maps expense ids to the itinerary item that declared a link to them,
// and itinerary items back to their expense ids in declaration order.
// Dangling links are tolerated silently: enforcing validity is the boundary
// validator's job at write time and the migration engine's job at rest.
type Index struct {
	mu      sync.RWMutex
	tripID  string
	forward map[string]Descriptor
	reverse map[ItemKey][]string
}

// Build constructs the index for doc in one pass over its locations,
// accommodations, and routes.
func Build(doc *domain.TripDocument) *Index {
	ix := &Index{}
	ix.Rebuild(doc)
	return ix
}

// Rebuild replaces the index contents from a reloaded document.
func (ix *Index) Rebuild(doc *domain.TripDocument) {
	forward := make(map[string]Descriptor)
	reverse := make(map[ItemKey][]string)
	tripID := ""

	if doc != nil {
		tripID = doc.ID
		locationNames := make(map[string]string)
		if doc.Itinerary != nil {
			for i := range doc.Itinerary.Locations {
				locationNames[doc.Itinerary.Locations[i].ID] = doc.Itinerary.Locations[i].Name
			}
		}

		add := func(desc Descriptor, links []domain.CostTrackingLink) {
			key := ItemKey{Kind: desc.Kind, ID: desc.ID}
			for _, link := range links {
				if link.ExpenseID == "" {
					continue
				}
				// First declaration wins in the forward map; every
				// declaration appears in its reverse list.
				if _, ok := forward[link.ExpenseID]; !ok {
					forward[link.ExpenseID] = desc
				}
				reverse[key] = append(reverse[key], link.ExpenseID)
			}
		}

		if doc.Itinerary != nil {
			for i := range doc.Itinerary.Locations {
				loc := &doc.Itinerary.Locations[i]
				add(Descriptor{
					Kind:      domain.TravelItemLocation,
					ID:        loc.ID,
					Name:      loc.Name,
					TripTitle: doc.Title,
				}, loc.CostTrackingLinks)
			}
			for i := range doc.Itinerary.Routes {
				indexRoute(&doc.Itinerary.Routes[i], doc.Title, add)
			}
		}
		for i := range doc.Accommodations {
			acc := &doc.Accommodations[i]
			add(Descriptor{
				Kind:         domain.TravelItemAccommodation,
				ID:           acc.ID,
				Name:         acc.Name,
				LocationName: locationNames[acc.LocationID],
				TripTitle:    doc.Title,
			}, acc.CostTrackingLinks)
		}
	}

	ix.mu.Lock()
	ix.tripID = tripID
	ix.forward = forward
	ix.reverse = reverse
	ix.mu.Unlock()
}

// indexRoute attributes a sub-route's links to the parent route's descriptor
// and reverse key; sub-routes are segments of the leg, not items of their own
// in the lookup.
func indexRoute(r *domain.Route, tripTitle string, add func(Descriptor, []domain.CostTrackingLink)) {
	desc := Descriptor{
		Kind:      domain.TravelItemRoute,
		ID:        r.ID,
		Name:      r.DisplayName(),
		TripTitle: tripTitle,
	}
	add(desc, r.CostTrackingLinks)
	for i := range r.SubRoutes {
		add(desc, r.SubRoutes[i].CostTrackingLinks)
	}
}

// TripID returns the id of the trip the index was built from.
func (ix *Index) TripID() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tripID
}

// Lookup returns the descriptor of the item linked to expenseID.
func (ix *Index) Lookup(expenseID string) (Descriptor, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	desc, ok := ix.forward[expenseID]
	return desc, ok
}

// Has reports whether any itinerary item declares a link to expenseID.
func (ix *Index) Has(expenseID string) bool {
	_, ok := ix.Lookup(expenseID)
	return ok
}

// ReverseLookup returns the expense ids linked by the given item, in the
// order the links were declared. The slice is a copy.
func (ix *Index) ReverseLookup(kind domain.TravelItemType, itemID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.reverse[ItemKey{Kind: kind, ID: itemID}]...)
}

// Len returns the number of distinct expense ids in the forward map.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.forward)
}

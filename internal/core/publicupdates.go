package core

import (
	"fmt"
	"sort"
	"time"

	"tripcore/pkg/domain"
)

// itineraryNames maps ids to display names for one section of the itinerary.
type itineraryNames struct {
	locations      map[string]string
	routes         map[string]string
	accommodations map[string]string
}

func itinerarySnapshot(doc *domain.TripDocument) itineraryNames {
	snap := itineraryNames{
		locations:      map[string]string{},
		routes:         map[string]string{},
		accommodations: map[string]string{},
	}
	if doc.Itinerary != nil {
		for _, loc := range doc.Itinerary.Locations {
			snap.locations[loc.ID] = loc.Name
		}
		for _, rt := range doc.Itinerary.Routes {
			snap.routes[rt.ID] = rt.DisplayName()
		}
	}
	for _, acc := range doc.Accommodations {
		snap.accommodations[acc.ID] = acc.Name
	}
	return snap
}

// diffItineraries renders the human-readable change notices between two
// itinerary snapshots: additions first, then removals, locations before
// routes before accommodations.
func diffItineraries(before, after itineraryNames) []string {
	var messages []string
	collect := func(kind string, prev, curr map[string]string) {
		var added, removed []string
		for id, name := range curr {
			if _, ok := prev[id]; !ok {
				added = append(added, name)
			}
		}
		for id, name := range prev {
			if _, ok := curr[id]; !ok {
				removed = append(removed, name)
			}
		}
		sort.Strings(added)
		sort.Strings(removed)
		for _, name := range added {
			messages = append(messages, fmt.Sprintf("Added %s %s", kind, name))
		}
		for _, name := range removed {
			messages = append(messages, fmt.Sprintf("Removed %s %s", kind, name))
		}
	}
	collect("location", before.locations, after.locations)
	collect("route", before.routes, after.routes)
	collect("accommodation", before.accommodations, after.accommodations)
	return messages
}

// prependPublicUpdates inserts new notices most-recent-first and trims the
// log to its cap.
func prependPublicUpdates(existing []domain.PublicUpdate, messages []string, at time.Time) []domain.PublicUpdate {
	if len(messages) == 0 {
		return existing
	}
	fresh := make([]domain.PublicUpdate, 0, len(messages)+len(existing))
	for _, msg := range messages {
		fresh = append(fresh, domain.PublicUpdate{
			ID:        domain.NewID(),
			Message:   msg,
			CreatedAt: at,
		})
	}
	fresh = append(fresh, existing...)
	if len(fresh) > domain.MaxPublicUpdates {
		fresh = fresh[:domain.MaxPublicUpdates]
	}
	return fresh
}

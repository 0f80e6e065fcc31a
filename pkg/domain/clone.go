package domain

import "time"

// CloneDocument deep-copies a trip document. Stores hand out and accept
// clones only, so callers can never mutate persisted state through shared
// slices or pointers.
func CloneDocument(d *TripDocument) *TripDocument {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Itinerary = cloneItinerary(d.Itinerary)
	cp.Accommodations = cloneAccommodations(d.Accommodations)
	cp.Finance = cloneFinance(d.Finance)
	cp.PublicUpdates = append([]PublicUpdate(nil), d.PublicUpdates...)
	if d.BackupMetadata != nil {
		meta := *d.BackupMetadata
		cp.BackupMetadata = &meta
	}
	return &cp
}

func cloneItinerary(it *Itinerary) *Itinerary {
	if it == nil {
		return nil
	}
	cp := Itinerary{
		Locations: make([]Location, len(it.Locations)),
		Routes:    make([]Route, len(it.Routes)),
		Days:      append([]JourneyPeriod(nil), it.Days...),
	}
	for i, loc := range it.Locations {
		cp.Locations[i] = cloneLocation(loc)
	}
	for i, rt := range it.Routes {
		cp.Routes[i] = cloneRoute(rt)
	}
	return &cp
}

func cloneLocation(l Location) Location {
	cp := l
	cp.EndDate = cloneTime(l.EndDate)
	cp.AccommodationIDs = append([]string(nil), l.AccommodationIDs...)
	cp.CostTrackingLinks = append([]CostTrackingLink(nil), l.CostTrackingLinks...)
	if l.LegacyAccommodation != nil {
		legacy := *l.LegacyAccommodation
		cp.LegacyAccommodation = &legacy
	}
	return cp
}

func cloneAccommodations(as []Accommodation) []Accommodation {
	if as == nil {
		return nil
	}
	out := make([]Accommodation, len(as))
	for i, a := range as {
		out[i] = cloneAccommodation(a)
	}
	return out
}

func cloneAccommodation(a Accommodation) Accommodation {
	cp := a
	cp.CheckIn = cloneTime(a.CheckIn)
	cp.CheckOut = cloneTime(a.CheckOut)
	cp.CostTrackingLinks = append([]CostTrackingLink(nil), a.CostTrackingLinks...)
	return cp
}

func cloneRoute(r Route) Route {
	cp := r
	cp.CostTrackingLinks = append([]CostTrackingLink(nil), r.CostTrackingLinks...)
	if r.SubRoutes != nil {
		cp.SubRoutes = make([]Route, len(r.SubRoutes))
		for i, sub := range r.SubRoutes {
			cp.SubRoutes[i] = cloneRoute(sub)
		}
	}
	return cp
}

func cloneFinance(f *Finance) *Finance {
	if f == nil {
		return nil
	}
	cp := *f
	cp.CountryBudgets = append([]CountryBudget(nil), f.CountryBudgets...)
	cp.CustomCategories = append([]string(nil), f.CustomCategories...)
	if f.Expenses != nil {
		cp.Expenses = make([]Expense, len(f.Expenses))
		for i, e := range f.Expenses {
			cp.Expenses[i] = cloneExpense(e)
		}
	}
	if f.ImportMetadata != nil {
		meta := *f.ImportMetadata
		meta.LastImportedAt = cloneTime(f.ImportMetadata.LastImportedAt)
		meta.ImportedHashes = append([]string(nil), f.ImportMetadata.ImportedHashes...)
		cp.ImportMetadata = &meta
	}
	return &cp
}

func cloneExpense(e Expense) Expense {
	cp := e
	if e.TravelReference != nil {
		ref := *e.TravelReference
		cp.TravelReference = &ref
	}
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

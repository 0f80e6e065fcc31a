// Package domain defines the trip document aggregate, its nested entities,
// the cross-reference link primitives, and the persistence contract used by
// tripcore.
package domain

import (
	"fmt"
	"time"
)

// CurrentSchemaVersion is the schema version stamped on every document the
// engine writes. Documents at older versions are upgraded on load; a document
// is never written back at an older version.
const CurrentSchemaVersion = 7

// MaxPublicUpdates bounds the public update log kept on a document. The log
// is ordered most-recent-first and trimmed past this cap.
const MaxPublicUpdates = 100

// TravelItemType identifies the kind of itinerary item an expense links to.
type TravelItemType string

// Travel item kinds referenced by expense links.
const (
	TravelItemLocation      TravelItemType = "location"
	TravelItemAccommodation TravelItemType = "accommodation"
	TravelItemRoute         TravelItemType = "route"
)

// ExpenseCategory groups expenses for budgeting.
type ExpenseCategory string

// Expense categories recognised by the finance section.
const (
	CategoryAccommodation ExpenseCategory = "accommodation"
	CategoryFood          ExpenseCategory = "food"
	CategoryTransport     ExpenseCategory = "transport"
	CategoryActivities    ExpenseCategory = "activities"
	CategoryShopping      ExpenseCategory = "shopping"
	CategoryOther         ExpenseCategory = "other"
)

// ExpenseType distinguishes money already spent from money planned.
type ExpenseType string

// Expense types.
const (
	ExpenseActual  ExpenseType = "actual"
	ExpensePlanned ExpenseType = "planned"
)

// TransportType identifies how a route segment is travelled.
type TransportType string

// Transport types carried on routes.
const (
	TransportFlight TransportType = "flight"
	TransportTrain  TransportType = "train"
	TransportBus    TransportType = "bus"
	TransportCar    TransportType = "car"
	TransportFerry  TransportType = "ferry"
	TransportWalk   TransportType = "walk"
	TransportOther  TransportType = "other"
)

// BackupKind identifies what a backup snapshot contains.
type BackupKind string

// Backup kinds written by the persistence engine.
const (
	BackupTrip      BackupKind = "trip"
	BackupCost      BackupKind = "cost"
	BackupCorrupted BackupKind = "corrupted"
)

// TripDocument is the aggregate persisted one-file-per-trip. JSON keys are
// camelCase because the on-disk format predates this implementation and has
// to stay readable by seven generations of historical files.
type TripDocument struct {
	SchemaVersion  int             `json:"schemaVersion"`
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Itinerary      *Itinerary      `json:"itinerary,omitempty"`
	Accommodations []Accommodation `json:"accommodations"`
	Finance        *Finance        `json:"finance,omitempty"`
	PublicUpdates  []PublicUpdate  `json:"publicUpdates,omitempty"`
	// BackupMetadata is only present on backup snapshots, never on live
	// documents.
	BackupMetadata *BackupMetadata `json:"backupMetadata,omitempty"`
}

// Itinerary holds the travel side of a trip.
type Itinerary struct {
	Locations []Location      `json:"locations"`
	Routes    []Route         `json:"routes"`
	Days      []JourneyPeriod `json:"days,omitempty"`
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a visited place. AccommodationIDs reference first-class
// Accommodation entities; LegacyAccommodation carries the pre-extraction
// embedded payload still found in version 1 files and is consumed by
// migration.
type Location struct {
	ID                  string                 `json:"id"`
	Name                string                 `json:"name"`
	Coordinates         Coordinates            `json:"coordinates"`
	Date                time.Time              `json:"date"`
	EndDate             *time.Time             `json:"endDate,omitempty"`
	Notes               string                 `json:"notes,omitempty"`
	AccommodationIDs    []string               `json:"accommodationIds"`
	CostTrackingLinks   []CostTrackingLink     `json:"costTrackingLinks"`
	LegacyAccommodation *EmbeddedAccommodation `json:"accommodation,omitempty"`
}

// EmbeddedAccommodation is the version 1 shape where accommodation data lived
// inline on its location.
type EmbeddedAccommodation struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Accommodation is a first-class lodging entity owned by a location.
type Accommodation struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	LocationID        string             `json:"locationId"`
	Address           string             `json:"address,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	CheckIn           *time.Time         `json:"checkIn,omitempty"`
	CheckOut          *time.Time         `json:"checkOut,omitempty"`
	CostTrackingLinks []CostTrackingLink `json:"costTrackingLinks"`
}

// Route is a travel leg between two places. SubRoutes break a leg into
// segments; each segment carries its own expense links.
type Route struct {
	ID                string             `json:"id"`
	From              string             `json:"from"`
	To                string             `json:"to"`
	FromCoordinates   Coordinates        `json:"fromCoordinates"`
	ToCoordinates     Coordinates        `json:"toCoordinates"`
	TransportType     TransportType      `json:"transportType"`
	Date              time.Time          `json:"date"`
	Notes             string             `json:"notes,omitempty"`
	CostTrackingLinks []CostTrackingLink `json:"costTrackingLinks"`
	SubRoutes         []Route            `json:"subRoutes,omitempty"`
}

// DisplayName renders the route the way the UI titles it.
func (r Route) DisplayName() string {
	return fmt.Sprintf("%s → %s", r.From, r.To)
}

// JourneyPeriod is a named span of days inside a trip.
type JourneyPeriod struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Notes     string    `json:"notes,omitempty"`
}

// Finance holds the money side of a trip.
type Finance struct {
	OverallBudget    float64         `json:"overallBudget"`
	ReservedBudget   float64         `json:"reservedBudget"`
	Currency         string          `json:"currency"`
	CountryBudgets   []CountryBudget `json:"countryBudgets,omitempty"`
	Expenses         []Expense       `json:"expenses"`
	CustomCategories []string        `json:"customCategories,omitempty"`
	ImportMetadata   *ImportMetadata `json:"importMetadata,omitempty"`
}

// CountryBudget allocates part of the overall budget to one country.
type CountryBudget struct {
	Country  string  `json:"country"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ImportMetadata records provenance of bank-statement imports. The parser
// itself is an external collaborator; tripcore only stores its output.
type ImportMetadata struct {
	LastImportedAt *time.Time `json:"lastImportedAt,omitempty"`
	Source         string     `json:"source,omitempty"`
	ImportedHashes []string   `json:"importedHashes,omitempty"`
}

// Expense is a single financial entry. TravelReference is the expense-side
// half of a bidirectional link to an itinerary item.
type Expense struct {
	ID                    string           `json:"id"`
	Date                  time.Time        `json:"date"`
	Amount                float64          `json:"amount"`
	Currency              string           `json:"currency"`
	Category              ExpenseCategory  `json:"category"`
	Country               string           `json:"country,omitempty"`
	Description           string           `json:"description,omitempty"`
	ExpenseType           ExpenseType      `json:"expenseType"`
	TravelReference       *TravelReference `json:"travelReference,omitempty"`
	ImportHash            string           `json:"importHash,omitempty"`
	ExternalTransactionID string           `json:"externalTransactionId,omitempty"`
}

// TravelReference names the itinerary item an expense is linked to. Exactly
// one of the id fields is set, selected by Type.
type TravelReference struct {
	Type            TravelItemType `json:"type"`
	LocationID      string         `json:"locationId,omitempty"`
	AccommodationID string         `json:"accommodationId,omitempty"`
	RouteID         string         `json:"routeId,omitempty"`
	Description     string         `json:"description,omitempty"`
}

// TargetID returns the id named by the reference's Type.
func (r *TravelReference) TargetID() string {
	if r == nil {
		return ""
	}
	switch r.Type {
	case TravelItemLocation:
		return r.LocationID
	case TravelItemAccommodation:
		return r.AccommodationID
	case TravelItemRoute:
		return r.RouteID
	default:
		return ""
	}
}

// NewTravelReference builds a reference of the given kind pointing at id.
func NewTravelReference(kind TravelItemType, id, description string) *TravelReference {
	ref := &TravelReference{Type: kind, Description: description}
	switch kind {
	case TravelItemLocation:
		ref.LocationID = id
	case TravelItemAccommodation:
		ref.AccommodationID = id
	case TravelItemRoute:
		ref.RouteID = id
	}
	return ref
}

// CostTrackingLink is the itinerary-side half of a bidirectional link: it
// lives on a Location, Accommodation, or Route and names the expense.
type CostTrackingLink struct {
	ExpenseID   string `json:"expenseId"`
	Description string `json:"description,omitempty"`
}

// PublicUpdate is one human-readable change notice derived from an itinerary
// diff.
type PublicUpdate struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// BackupMetadata identifies a backup snapshot and the deletion that produced
// it.
type BackupMetadata struct {
	DeletedAt  time.Time  `json:"deletedAt"`
	OriginalID string     `json:"originalId"`
	BackupType BackupKind `json:"backupType"`
	Reason     string     `json:"reason,omitempty"`
}

// TripSummary is the lightweight listing shape returned without loading or
// migrating full documents.
type TripSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	SchemaVersion int       `json:"schemaVersion"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasExpense reports whether the document's finance section contains an
// expense with the given id.
func (d *TripDocument) HasExpense(id string) bool {
	if d == nil || d.Finance == nil || id == "" {
		return false
	}
	for i := range d.Finance.Expenses {
		if d.Finance.Expenses[i].ID == id {
			return true
		}
	}
	return false
}

// FindExpense returns a pointer to the expense with the given id, or nil.
// The pointer aliases the document; callers that mutate through it own the
// document.
func (d *TripDocument) FindExpense(id string) *Expense {
	if d == nil || d.Finance == nil || id == "" {
		return nil
	}
	for i := range d.Finance.Expenses {
		if d.Finance.Expenses[i].ID == id {
			return &d.Finance.Expenses[i]
		}
	}
	return nil
}

// TravelItemName resolves the display name of the itinerary item identified
// by kind and id, reporting whether the item exists in this document.
// Nested sub-routes are searched along with their parents.
func (d *TripDocument) TravelItemName(kind TravelItemType, id string) (string, bool) {
	if d == nil || id == "" {
		return "", false
	}
	switch kind {
	case TravelItemLocation:
		if d.Itinerary == nil {
			return "", false
		}
		for i := range d.Itinerary.Locations {
			if d.Itinerary.Locations[i].ID == id {
				return d.Itinerary.Locations[i].Name, true
			}
		}
	case TravelItemAccommodation:
		for i := range d.Accommodations {
			if d.Accommodations[i].ID == id {
				return d.Accommodations[i].Name, true
			}
		}
	case TravelItemRoute:
		if d.Itinerary == nil {
			return "", false
		}
		for i := range d.Itinerary.Routes {
			if name, ok := routeName(&d.Itinerary.Routes[i], id); ok {
				return name, true
			}
		}
	}
	return "", false
}

func routeName(r *Route, id string) (string, bool) {
	if r.ID == id {
		return r.DisplayName(), true
	}
	for i := range r.SubRoutes {
		if name, ok := routeName(&r.SubRoutes[i], id); ok {
			return name, true
		}
	}
	return "", false
}

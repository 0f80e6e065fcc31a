package domain

import "context"

// Migrator upgrades documents to the current schema version and repairs
// cross-reference damage. The concrete implementation lives in
// internal/migrate; stores depend only on this contract.
type Migrator interface {
	// Apply upgrades doc to CurrentSchemaVersion, repairing latent
	// inconsistencies on the way. The returned flag reports whether the
	// document changed (drives persist-after-load). The input is never
	// mutated.
	Apply(doc *TripDocument) (*TripDocument, bool, error)
	// Repair runs only the consistency sweep on a document already at the
	// current version, used when merging restored data.
	Repair(doc *TripDocument) (*TripDocument, bool)
}

// DocumentStore is the persistence contract for trip documents. Every
// returned document is a clone at CurrentSchemaVersion; every accepted
// document is cloned before storage.
type DocumentStore interface {
	// Load returns the document for tripID or NotFoundError{TRIP_NOT_FOUND}.
	Load(ctx context.Context, tripID string) (*TripDocument, error)
	// Save persists the document, rejecting schema versions other than
	// CurrentSchemaVersion with InvalidSchemaVersionError.
	Save(ctx context.Context, doc *TripDocument) error
	// Delete removes the trip after durably writing a backup snapshot
	// tagged with reason. Backup failure aborts the deletion.
	Delete(ctx context.Context, tripID, reason string) error
	// DeleteCostData removes the finance section and every cost tracking
	// link across the itinerary, after writing a cost backup snapshot.
	DeleteCostData(ctx context.Context, tripID, reason string) error
	// Restore writes a full backup snapshot back as the live document.
	// Without overwrite it fails with ConflictError{TRIP_EXISTS} when a
	// live document is present.
	Restore(ctx context.Context, snapshot *TripDocument, overwrite bool) (*TripDocument, error)
	// RestoreCostData merges a snapshot's finance section into the live
	// document, reconciling links with however the itinerary has evolved
	// since the backup was taken.
	RestoreCostData(ctx context.Context, snapshot *TripDocument) (*TripDocument, error)
	// List returns summaries of all stored trips without migrating them.
	List(ctx context.Context) ([]TripSummary, error)
	Close() error
}

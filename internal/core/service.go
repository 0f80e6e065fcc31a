// Package core hosts the trip service facade: document lifecycle, section
// updates, expense link validation and application, backup verification and
// restore. It composes the migration engine, the persistence store, the
// backup catalog, and the snapshot archive behind one API.
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"tripcore/internal/archive"
	"tripcore/internal/audit"
	"tripcore/internal/infra/catalog"
	"tripcore/internal/linkindex"
	"tripcore/internal/migrate"
	"tripcore/pkg/domain"
	"tripcore/pkg/logging"
)

const defaultIndexCacheSize = 128

// Service is the trip document facade.
type Service struct {
	store    domain.DocumentStore
	catalog  catalog.Store
	archive  archive.Store
	migrator domain.Migrator
	audit    audit.Recorder
	logger   logging.Logger
	metrics  MetricsRecorder
	clock    func() time.Time
	indexes  *lru.Cache[string, *linkindex.Index]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the operation metrics recorder.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithCatalog attaches the backup catalog used by listing, verification, and
// restore.
func WithCatalog(c catalog.Store) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithArchive attaches the snapshot archive used by verification and restore.
func WithArchive(a archive.Store) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithAudit sets the recorder receiving lifecycle entries.
func WithAudit(r audit.Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithMigrator overrides the migration engine used for section merges.
func WithMigrator(m domain.Migrator) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.migrator = m
		}
	}
}

// WithIndexCacheSize bounds the per-trip link index cache.
func WithIndexCacheSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			cache, err := lru.New[string, *linkindex.Index](n)
			if err == nil {
				s.indexes = cache
			}
		}
	}
}

// NewService constructs the facade over a document store. Without options it
// uses a fresh migration engine, silent logging, and no backup catalog.
func NewService(store domain.DocumentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		migrator: migrate.New(),
		audit:    audit.Noop(),
		logger:   logging.Noop(),
		metrics:  NoopMetrics(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.indexes == nil {
		s.indexes, _ = lru.New[string, *linkindex.Index](defaultIndexCacheSize)
	}
	return s
}

// observe meters one operation. Callers defer it with the operation start
// time and a pointer to their named error.
func (s *Service) observe(ctx context.Context, op string, start time.Time, err *error) {
	s.metrics.Observe(ctx, op, err == nil || *err == nil, time.Since(start))
}

func (s *Service) invalidateIndex(tripID string) {
	s.indexes.Remove(tripID)
}

// NewTrip carries the fields a fresh trip starts with.
type NewTrip struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// ItineraryUpdate replaces the travel side of a trip as one unit. The
// accommodations array travels with the itinerary because locations reference
// accommodations by id.
type ItineraryUpdate struct {
	Itinerary      *domain.Itinerary
	Accommodations []domain.Accommodation
}

// FinanceUpdate replaces the money side of a trip.
type FinanceUpdate struct {
	Finance *domain.Finance
}

// CreateTrip persists a fresh document at the current schema version.
func (s *Service) CreateTrip(ctx context.Context, req NewTrip) (doc *domain.TripDocument, err error) {
	defer s.observe(ctx, "create_trip", time.Now(), &err)
	if req.Title == "" {
		return nil, fmt.Errorf("trip title required")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, fmt.Errorf("trip ends before it starts")
	}
	now := s.clock().UTC()
	doc = &domain.TripDocument{
		SchemaVersion: domain.CurrentSchemaVersion,
		ID:            domain.NewID(),
		Title:         req.Title,
		Description:   req.Description,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		CreatedAt:     now,
		UpdatedAt:     now,
		Itinerary: &domain.Itinerary{
			Locations: []domain.Location{},
			Routes:    []domain.Route{},
		},
		Accommodations: []domain.Accommodation{},
	}
	if err = s.store.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("created trip", "trip_id", doc.ID, "title", doc.Title)
	return doc, nil
}

// LoadTrip returns the migrated document for tripID.
func (s *Service) LoadTrip(ctx context.Context, tripID string) (doc *domain.TripDocument, err error) {
	defer s.observe(ctx, "load_trip", time.Now(), &err)
	return s.store.Load(ctx, tripID)
}

// ListTrips returns summaries of every stored trip.
func (s *Service) ListTrips(ctx context.Context) (out []domain.TripSummary, err error) {
	defer s.observe(ctx, "list_trips", time.Now(), &err)
	return s.store.List(ctx)
}

// SaveTrip persists a caller-held document. Only the current schema version
// is accepted; the persisted copy gets a fresh UpdatedAt.
func (s *Service) SaveTrip(ctx context.Context, doc *domain.TripDocument) (saved *domain.TripDocument, err error) {
	defer s.observe(ctx, "save_trip", time.Now(), &err)
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	if doc.SchemaVersion != domain.CurrentSchemaVersion {
		return nil, domain.InvalidSchemaVersionError{TripID: doc.ID, Version: doc.SchemaVersion}
	}
	saved = domain.CloneDocument(doc)
	saved.UpdatedAt = s.clock().UTC()
	if err = s.store.Save(ctx, saved); err != nil {
		return nil, err
	}
	s.invalidateIndex(saved.ID)
	return saved, nil
}

// UpdateItinerary replaces the travel section wholesale and reconciles the
// finance section's links against the new itinerary. Human-readable public
// updates are derived from the itinerary diff.
func (s *Service) UpdateItinerary(ctx context.Context, tripID string, update ItineraryUpdate) (doc *domain.TripDocument, err error) {
	defer s.observe(ctx, "update_itinerary", time.Now(), &err)
	live, err := s.store.Load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	before := itinerarySnapshot(live)

	incoming := domain.CloneDocument(&domain.TripDocument{
		Itinerary:      update.Itinerary,
		Accommodations: update.Accommodations,
	})
	live.Itinerary = incoming.Itinerary
	live.Accommodations = incoming.Accommodations

	// The sweep repairs only what the new itinerary invalidated; untouched
	// finance entries come through byte-identical.
	repaired, _ := s.migrator.Repair(live)
	repaired.PublicUpdates = prependPublicUpdates(
		repaired.PublicUpdates,
		diffItineraries(before, itinerarySnapshot(repaired)),
		s.clock().UTC(),
	)
	repaired.UpdatedAt = s.clock().UTC()
	if err = s.store.Save(ctx, repaired); err != nil {
		return nil, err
	}
	s.invalidateIndex(tripID)
	return repaired, nil
}

// UpdateFinance replaces the money section wholesale and reconciles links.
// Finance is private, so no public updates are derived.
func (s *Service) UpdateFinance(ctx context.Context, tripID string, update FinanceUpdate) (doc *domain.TripDocument, err error) {
	defer s.observe(ctx, "update_finance", time.Now(), &err)
	live, err := s.store.Load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	live.Finance = domain.CloneDocument(&domain.TripDocument{Finance: update.Finance}).Finance
	repaired, _ := s.migrator.Repair(live)
	repaired.UpdatedAt = s.clock().UTC()
	if err = s.store.Save(ctx, repaired); err != nil {
		return nil, err
	}
	s.invalidateIndex(tripID)
	return repaired, nil
}

// ValidateLink checks a proposed expense link without applying it.
func (s *Service) ValidateLink(ctx context.Context, tripID, expenseID string, item *domain.TravelItemRef) (v domain.LinkValidation, err error) {
	defer s.observe(ctx, "validate_link", time.Now(), &err)
	doc, err := s.store.Load(ctx, tripID)
	if err != nil {
		return domain.LinkValidation{}, err
	}
	return ValidateExpenseLink(doc, expenseID, item), nil
}

// LinkExpense validates and applies an expense link in one step. A nil item
// unlinks. The link replaces any prior reference the expense held; both sides
// of the old link are removed first.
func (s *Service) LinkExpense(ctx context.Context, tripID, expenseID string, item *domain.TravelItemRef) (doc *domain.TripDocument, err error) {
	defer s.observe(ctx, "link_expense", time.Now(), &err)
	live, err := s.store.Load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if v := ValidateExpenseLink(live, expenseID, item); !v.OK() {
		return nil, domain.LinkViolationError{Validation: v}
	}
	applyLink(live, expenseID, item)
	live.UpdatedAt = s.clock().UTC()
	if err = s.store.Save(ctx, live); err != nil {
		return nil, err
	}
	s.invalidateIndex(tripID)
	return live, nil
}

// applyLink rewires both halves of the bidirectional link on a validated
// document.
func applyLink(doc *domain.TripDocument, expenseID string, item *domain.TravelItemRef) {
	removeItineraryLinks(doc, expenseID)
	expense := doc.FindExpense(expenseID)
	if item == nil {
		expense.TravelReference = nil
		return
	}
	name, _ := doc.TravelItemName(item.Type, item.ID)
	expense.TravelReference = domain.NewTravelReference(item.Type, item.ID, name)
	if links := linkSliceFor(doc, item.Type, item.ID); links != nil {
		*links = append(*links, domain.CostTrackingLink{
			ExpenseID:   expenseID,
			Description: expense.Description,
		})
	}
}

func removeItineraryLinks(doc *domain.TripDocument, expenseID string) {
	drop := func(links []domain.CostTrackingLink) []domain.CostTrackingLink {
		out := links[:0]
		for _, l := range links {
			if l.ExpenseID != expenseID {
				out = append(out, l)
			}
		}
		return out
	}
	if doc.Itinerary != nil {
		for i := range doc.Itinerary.Locations {
			doc.Itinerary.Locations[i].CostTrackingLinks = drop(doc.Itinerary.Locations[i].CostTrackingLinks)
		}
		for i := range doc.Itinerary.Routes {
			dropRouteLinks(&doc.Itinerary.Routes[i], drop)
		}
	}
	for i := range doc.Accommodations {
		doc.Accommodations[i].CostTrackingLinks = drop(doc.Accommodations[i].CostTrackingLinks)
	}
}

func dropRouteLinks(r *domain.Route, drop func([]domain.CostTrackingLink) []domain.CostTrackingLink) {
	r.CostTrackingLinks = drop(r.CostTrackingLinks)
	for i := range r.SubRoutes {
		dropRouteLinks(&r.SubRoutes[i], drop)
	}
}

// linkSliceFor resolves the link slice of the itinerary item the reference
// names, descending into sub-routes.
func linkSliceFor(doc *domain.TripDocument, kind domain.TravelItemType, id string) *[]domain.CostTrackingLink {
	switch kind {
	case domain.TravelItemLocation:
		if doc.Itinerary == nil {
			return nil
		}
		for i := range doc.Itinerary.Locations {
			if doc.Itinerary.Locations[i].ID == id {
				return &doc.Itinerary.Locations[i].CostTrackingLinks
			}
		}
	case domain.TravelItemAccommodation:
		for i := range doc.Accommodations {
			if doc.Accommodations[i].ID == id {
				return &doc.Accommodations[i].CostTrackingLinks
			}
		}
	case domain.TravelItemRoute:
		if doc.Itinerary == nil {
			return nil
		}
		for i := range doc.Itinerary.Routes {
			if links := routeLinkSlice(&doc.Itinerary.Routes[i], id); links != nil {
				return links
			}
		}
	}
	return nil
}

func routeLinkSlice(r *domain.Route, id string) *[]domain.CostTrackingLink {
	if r.ID == id {
		return &r.CostTrackingLinks
	}
	for i := range r.SubRoutes {
		if links := routeLinkSlice(&r.SubRoutes[i], id); links != nil {
			return links
		}
	}
	return nil
}

// ExpenseLinkIndex returns the cached link index for a trip, building it on
// miss. Every mutating operation invalidates the entry.
func (s *Service) ExpenseLinkIndex(ctx context.Context, tripID string) (ix *linkindex.Index, err error) {
	defer s.observe(ctx, "expense_link_index", time.Now(), &err)
	if cached, ok := s.indexes.Get(tripID); ok {
		return cached, nil
	}
	doc, err := s.store.Load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	ix = linkindex.Build(doc)
	s.indexes.Add(tripID, ix)
	return ix, nil
}

// DeleteTrip removes a trip after its backup snapshot is durably written.
func (s *Service) DeleteTrip(ctx context.Context, tripID, reason string) (err error) {
	defer s.observe(ctx, "delete_trip", time.Now(), &err)
	if err = s.store.Delete(ctx, tripID, reason); err != nil {
		return err
	}
	s.invalidateIndex(tripID)
	return nil
}

// DeleteCostData strips the finance section and every cost tracking link
// after a cost backup snapshot is written.
func (s *Service) DeleteCostData(ctx context.Context, tripID, reason string) (err error) {
	defer s.observe(ctx, "delete_cost_data", time.Now(), &err)
	if err = s.store.DeleteCostData(ctx, tripID, reason); err != nil {
		return err
	}
	s.invalidateIndex(tripID)
	return nil
}

// ListBackups lists catalog records, newest deletions first.
func (s *Service) ListBackups(ctx context.Context, filter catalog.Filter) (recs []catalog.Record, err error) {
	defer s.observe(ctx, "list_backups", time.Now(), &err)
	if s.catalog == nil {
		return nil, fmt.Errorf("no backup catalog configured")
	}
	return s.catalog.List(ctx, filter)
}

// VerifyBackup re-hashes the archived snapshot against the catalog checksum.
// A missing archive object is a failed verification, not an error.
func (s *Service) VerifyBackup(ctx context.Context, backupID string) (rec catalog.Record, ok bool, err error) {
	defer s.observe(ctx, "verify_backup", time.Now(), &err)
	rec, err = s.backupRecord(ctx, backupID)
	if err != nil {
		return catalog.Record{}, false, err
	}
	rc, _, err := s.archive.Get(ctx, rec.ArchiveKey)
	if errors.Is(err, archive.ErrNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return catalog.Record{}, false, err
	}
	defer func() { _ = rc.Close() }()
	h := sha256.New()
	if _, err = io.Copy(h, rc); err != nil {
		return catalog.Record{}, false, err
	}
	return rec, hex.EncodeToString(h.Sum(nil)) == rec.Checksum, nil
}

// RestoreTrip rehydrates a full trip snapshot back into the store.
func (s *Service) RestoreTrip(ctx context.Context, backupID string, overwrite bool) (doc *domain.TripDocument, err error) {
	defer s.observe(ctx, "restore_trip", time.Now(), &err)
	snapshot, rec, err := s.fetchSnapshot(ctx, backupID, domain.BackupTrip)
	if err != nil {
		return nil, err
	}
	doc, err = s.store.Restore(ctx, snapshot, overwrite)
	if err != nil {
		return nil, err
	}
	s.invalidateIndex(doc.ID)
	s.logger.Info("restored trip from backup", "trip_id", doc.ID, "backup_id", rec.ID)
	return doc, nil
}

// RestoreCostData merges a cost snapshot's finance section into the live
// document.
func (s *Service) RestoreCostData(ctx context.Context, backupID string) (doc *domain.TripDocument, err error) {
	defer s.observe(ctx, "restore_cost_data", time.Now(), &err)
	snapshot, rec, err := s.fetchSnapshot(ctx, backupID, domain.BackupCost)
	if err != nil {
		return nil, err
	}
	doc, err = s.store.RestoreCostData(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	s.invalidateIndex(doc.ID)
	s.logger.Info("restored cost data from backup", "trip_id", doc.ID, "backup_id", rec.ID)
	return doc, nil
}

func (s *Service) backupRecord(ctx context.Context, backupID string) (catalog.Record, error) {
	if s.catalog == nil || s.archive == nil {
		return catalog.Record{}, fmt.Errorf("no backup catalog configured")
	}
	return s.catalog.Get(ctx, backupID)
}

func (s *Service) fetchSnapshot(ctx context.Context, backupID string, kind domain.BackupKind) (*domain.TripDocument, catalog.Record, error) {
	rec, err := s.backupRecord(ctx, backupID)
	if err != nil {
		return nil, catalog.Record{}, err
	}
	if rec.Kind != kind {
		return nil, catalog.Record{}, fmt.Errorf("backup %s holds %s data, not %s", backupID, rec.Kind, kind)
	}
	rc, _, err := s.archive.Get(ctx, rec.ArchiveKey)
	if err != nil {
		return nil, catalog.Record{}, fmt.Errorf("open snapshot %s: %w", rec.ArchiveKey, err)
	}
	defer func() { _ = rc.Close() }()
	var snapshot domain.TripDocument
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return nil, catalog.Record{}, fmt.Errorf("decode snapshot %s: %w", rec.ArchiveKey, err)
	}
	return &snapshot, rec, nil
}

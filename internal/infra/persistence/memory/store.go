// Package memory mirrors the file-backed document store on a map, for tests
// and ephemeral runs. Semantics match fsjson: clones in and out,
// migrate-on-load, backup snapshots through the archive and hook.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"tripcore/internal/archive"
	archivemem "tripcore/internal/infra/archive/memory"
	"tripcore/internal/infra/catalog"
	"tripcore/internal/infra/persistence/fsjson"
	"tripcore/pkg/domain"
)

// Store keeps trip documents in memory.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]*domain.TripDocument
	migrator domain.Migrator
	archive  archive.Store
	hook     fsjson.BackupHook
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithArchive sets the snapshot archive. Defaults to an in-memory archive.
func WithArchive(a archive.Store) Option {
	return func(s *Store) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithBackupHook registers the catalog receiving snapshot records.
func WithBackupHook(h fsjson.BackupHook) Option {
	return func(s *Store) {
		if h != nil {
			s.hook = h
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs an empty store.
func New(migrator domain.Migrator, opts ...Option) (*Store, error) {
	if migrator == nil {
		return nil, fmt.Errorf("migrator required")
	}
	s := &Store{
		docs:     map[string]*domain.TripDocument{},
		migrator: migrator,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.archive == nil {
		s.archive = archivemem.New()
	}
	return s, nil
}

func (s *Store) Close() error { return nil }

// Seed places a document in the store without version checks, so tests can
// start from historical layouts.
func (s *Store) Seed(doc *domain.TripDocument) {
	s.mu.Lock()
	s.docs[doc.ID] = domain.CloneDocument(doc)
	s.mu.Unlock()
}

func (s *Store) Load(ctx context.Context, tripID string) (*domain.TripDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.docs[tripID]
	if !ok {
		return nil, domain.NewTripNotFound(tripID)
	}
	migrated, changed, err := s.migrator.Apply(stored)
	if err != nil {
		return nil, err
	}
	if changed {
		s.docs[tripID] = domain.CloneDocument(migrated)
	}
	return migrated, nil
}

func (s *Store) Save(ctx context.Context, doc *domain.TripDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("nil document")
	}
	if doc.SchemaVersion != domain.CurrentSchemaVersion {
		return domain.InvalidSchemaVersionError{TripID: doc.ID, Version: doc.SchemaVersion}
	}
	if doc.ID == "" {
		return fmt.Errorf("empty trip id")
	}
	s.mu.Lock()
	s.docs[doc.ID] = domain.CloneDocument(doc)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, tripID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.Load(ctx, tripID)
	if err != nil {
		return err
	}
	deletedAt := s.now().UTC()
	snapshot := domain.CloneDocument(doc)
	snapshot.BackupMetadata = &domain.BackupMetadata{
		DeletedAt:  deletedAt,
		OriginalID: tripID,
		BackupType: domain.BackupTrip,
		Reason:     reason,
	}
	key := fmt.Sprintf("deleted-trip-%s-%s.json", tripID, timestampKey(deletedAt))
	if err := s.backup(ctx, key, snapshot, catalog.Record{
		OriginalID: tripID,
		Kind:       domain.BackupTrip,
		Title:      doc.Title,
		DeletedAt:  deletedAt,
		ArchiveKey: key,
		Reason:     reason,
	}); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, tripID)
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteCostData(ctx context.Context, tripID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.Load(ctx, tripID)
	if err != nil {
		return err
	}
	deletedAt := s.now().UTC()
	snapshot := &domain.TripDocument{
		SchemaVersion: doc.SchemaVersion,
		ID:            doc.ID,
		Title:         doc.Title,
		Finance:       domain.CloneDocument(doc).Finance,
		BackupMetadata: &domain.BackupMetadata{
			DeletedAt:  deletedAt,
			OriginalID: tripID,
			BackupType: domain.BackupCost,
			Reason:     reason,
		},
	}
	key := fmt.Sprintf("deleted-cost-%s-%s.json", tripID, timestampKey(deletedAt))
	if err := s.backup(ctx, key, snapshot, catalog.Record{
		OriginalID: tripID,
		Kind:       domain.BackupCost,
		Title:      doc.Title,
		DeletedAt:  deletedAt,
		ArchiveKey: key,
		Reason:     reason,
	}); err != nil {
		return err
	}

	stripped := domain.CloneDocument(doc)
	stripped.Finance = nil
	stripLinks(stripped)
	s.mu.Lock()
	s.docs[tripID] = stripped
	s.mu.Unlock()
	return nil
}

func stripLinks(doc *domain.TripDocument) {
	if doc.Itinerary != nil {
		for i := range doc.Itinerary.Locations {
			doc.Itinerary.Locations[i].CostTrackingLinks = []domain.CostTrackingLink{}
		}
		for i := range doc.Itinerary.Routes {
			stripRouteLinks(&doc.Itinerary.Routes[i])
		}
	}
	for i := range doc.Accommodations {
		doc.Accommodations[i].CostTrackingLinks = []domain.CostTrackingLink{}
	}
}

func stripRouteLinks(r *domain.Route) {
	r.CostTrackingLinks = []domain.CostTrackingLink{}
	for i := range r.SubRoutes {
		stripRouteLinks(&r.SubRoutes[i])
	}
}

func (s *Store) Restore(ctx context.Context, snapshot *domain.TripDocument, overwrite bool) (*domain.TripDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	work := domain.CloneDocument(snapshot)
	work.BackupMetadata = nil
	migrated, _, err := s.migrator.Apply(work)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[migrated.ID]; exists && !overwrite {
		return nil, domain.ConflictError{Code: domain.CodeTripExists, TripID: migrated.ID}
	}
	s.docs[migrated.ID] = domain.CloneDocument(migrated)
	return migrated, nil
}

func (s *Store) RestoreCostData(ctx context.Context, snapshot *domain.TripDocument) (*domain.TripDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	live, err := s.Load(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	live.Finance = domain.CloneDocument(snapshot).Finance
	repaired, _ := s.migrator.Repair(live)
	s.mu.Lock()
	s.docs[snapshot.ID] = domain.CloneDocument(repaired)
	s.mu.Unlock()
	return repaired, nil
}

func (s *Store) List(ctx context.Context) ([]domain.TripSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TripSummary
	for _, doc := range s.docs {
		version := doc.SchemaVersion
		if version == 0 {
			version = 1
		}
		out = append(out, domain.TripSummary{
			ID:            doc.ID,
			Title:         doc.Title,
			SchemaVersion: version,
			StartDate:     doc.StartDate,
			EndDate:       doc.EndDate,
			UpdatedAt:     doc.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) backup(ctx context.Context, key string, snapshot *domain.TripDocument, rec catalog.Record) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	info, err := s.archive.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("backup trip %s: %w", rec.OriginalID, err)
	}
	if s.hook == nil {
		return nil
	}
	rec.SizeBytes = info.Size
	rec.Checksum = info.Checksum
	if _, err := s.hook.Add(ctx, rec); err != nil {
		return fmt.Errorf("record backup %s: %w", key, err)
	}
	return nil
}

func timestampKey(t time.Time) string {
	key := t.UTC().Format(time.RFC3339)
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case ':', '.':
			out = append(out, '-')
		default:
			out = append(out, key[i])
		}
	}
	return string(out)
}

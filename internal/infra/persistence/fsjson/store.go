// Package fsjson is the file-backed persistence engine: one two-space
// indented JSON file per trip, serialized per-path writes, atomic replaces,
// and corruption recovery with quarantine. It is the production
// domain.DocumentStore.
package fsjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"tripcore/internal/archive"
	archivefs "tripcore/internal/infra/archive/fs"
	"tripcore/internal/audit"
	"tripcore/internal/infra/catalog"
	"tripcore/pkg/domain"
	"tripcore/pkg/logging"
)

const (
	filePrefix = "trip-"
	fileSuffix = ".json"
)

// BackupHook receives the catalog record for every snapshot the engine
// archives. catalog.Store satisfies it directly; the engine never sees the
// catalog's query surface.
type BackupHook interface {
	Add(ctx context.Context, rec catalog.Record) (catalog.Record, error)
}

// Store persists trip documents under a single directory.
type Store struct {
	dir      string
	locks    *pathLocks
	migrator domain.Migrator
	archive  archive.Store
	hook     BackupHook
	audit    audit.Recorder
	logger   logging.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithArchive sets the snapshot archive. Defaults to a filesystem archive
// under <dir>/backups.
func WithArchive(a archive.Store) Option {
	return func(s *Store) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithBackupHook registers the catalog receiving snapshot records.
func WithBackupHook(h BackupHook) Option {
	return func(s *Store) {
		if h != nil {
			s.hook = h
		}
	}
}

// WithAudit sets the recorder for lifecycle and recovery entries.
func WithAudit(r audit.Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
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

// New opens a store rooted at dir, creating it if needed.
func New(dir string, migrator domain.Migrator, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory required")
	}
	if migrator == nil {
		return nil, fmt.Errorf("migrator required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &Store{
		dir:      dir,
		locks:    newPathLocks(),
		migrator: migrator,
		audit:    audit.Noop(),
		logger:   logging.Noop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.archive == nil {
		arch, err := archivefs.New(filepath.Join(dir, "backups"))
		if err != nil {
			return nil, err
		}
		s.archive = arch
	}
	return s, nil
}

func (s *Store) Close() error { return nil }

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(tripID string) (string, error) {
	if strings.TrimSpace(tripID) == "" {
		return "", fmt.Errorf("empty trip id")
	}
	if strings.ContainsAny(tripID, "/\\") || strings.Contains(tripID, "..") {
		return "", fmt.Errorf("invalid trip id %q", tripID)
	}
	return filepath.Join(s.dir, filePrefix+tripID+fileSuffix), nil
}

// timestamp renders the clock path-safe and sortable.
func (s *Store) timestamp() string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(s.now().UTC().Format(time.RFC3339))
}

// Load returns the migrated document for tripID. Documents changed by
// migration or corruption recovery are persisted before being returned.
func (s *Store) Load(ctx context.Context, tripID string) (*domain.TripDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(tripID)
	if err != nil {
		return nil, err
	}
	release := s.locks.acquire(path)
	defer release()
	return s.loadLocked(ctx, tripID, path)
}

// loadLocked reads, recovers, and migrates under an already-held path lock.
func (s *Store) loadLocked(ctx context.Context, tripID, path string) (*domain.TripDocument, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, domain.NewTripNotFound(tripID)
	}
	if err != nil {
		return nil, fmt.Errorf("read trip %s: %w", tripID, err)
	}

	var doc domain.TripDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return s.recoverLocked(ctx, tripID, path, data, err)
	}

	migrated, changed, err := s.migrator.Apply(&doc)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := writeDocument(path, migrated); err != nil {
			return nil, fmt.Errorf("persist migrated trip %s: %w", tripID, err)
		}
	}
	return migrated, nil
}

// recoverLocked handles a file that no longer parses: quarantine the original
// bytes, persist the best salvageable prefix, or report the trip absent while
// leaving the file in place for manual inspection.
func (s *Store) recoverLocked(ctx context.Context, tripID, path string, data []byte, parseErr error) (*domain.TripDocument, error) {
	recovered, ok := recoverDocument(data)
	if !ok {
		s.audit.Record(ctx, audit.Entry{
			TripID: tripID,
			Op:     audit.OpCorruptionUnrecovered,
			Reason: fmt.Sprintf("unparseable trip file left in place: %v", parseErr),
		})
		s.logger.Error("trip file corrupt and unrecoverable", "trip_id", tripID, "error", parseErr)
		return nil, domain.NewTripNotFound(tripID)
	}

	key := fmt.Sprintf("corrupted-trip-%s-%s.json.corrupt", tripID, s.timestamp())
	info, err := s.archive.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("quarantine corrupt trip %s: %w", tripID, err)
	}
	if err := s.recordBackup(ctx, catalog.Record{
		OriginalID: tripID,
		Kind:       domain.BackupCorrupted,
		Title:      recovered.Title,
		DeletedAt:  s.now().UTC(),
		ArchiveKey: key,
		SizeBytes:  info.Size,
		Checksum:   info.Checksum,
		Reason:     parseErr.Error(),
	}); err != nil {
		return nil, err
	}

	migrated, _, err := s.migrator.Apply(recovered)
	if err != nil {
		return nil, err
	}
	if err := writeDocument(path, migrated); err != nil {
		return nil, fmt.Errorf("persist recovered trip %s: %w", tripID, err)
	}
	s.audit.Record(ctx, audit.Entry{
		TripID: tripID,
		Op:     audit.OpCorruptionRecovery,
		Reason: fmt.Sprintf("recovered %d of %d bytes, original quarantined as %s", len(data)-countDiscarded(data, migrated), len(data), key),
	})
	s.logger.Warn("recovered corrupt trip file", "trip_id", tripID, "quarantine_key", key)
	return migrated, nil
}

func countDiscarded(data []byte, doc *domain.TripDocument) int {
	// Best-effort figure for the audit trail only.
	encoded, err := json.Marshal(doc)
	if err != nil || len(encoded) > len(data) {
		return 0
	}
	return len(data) - len(encoded)
}

// Save persists the document. Only documents at the current schema version
// are accepted; the engine never writes an older layout.
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
	path, err := s.pathFor(doc.ID)
	if err != nil {
		return err
	}
	clone := domain.CloneDocument(doc)
	release := s.locks.acquire(path)
	defer release()
	if err := writeDocument(path, clone); err != nil {
		return fmt.Errorf("save trip %s: %w", doc.ID, err)
	}
	return nil
}

// Delete archives a full snapshot, registers it with the backup hook, and
// only then removes the live file. A failed backup aborts the deletion.
func (s *Store) Delete(ctx context.Context, tripID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(tripID)
	if err != nil {
		return err
	}
	release := s.locks.acquire(path)
	defer release()

	doc, err := s.loadLocked(ctx, tripID, path)
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
	key := fmt.Sprintf("deleted-trip-%s-%s.json", tripID, s.timestamp())
	info, err := s.archiveSnapshot(ctx, key, snapshot)
	if err != nil {
		return fmt.Errorf("backup trip %s before delete: %w", tripID, err)
	}
	if err := s.recordBackup(ctx, catalog.Record{
		OriginalID: tripID,
		Kind:       domain.BackupTrip,
		Title:      doc.Title,
		DeletedAt:  deletedAt,
		ArchiveKey: key,
		SizeBytes:  info.Size,
		Checksum:   info.Checksum,
		Reason:     reason,
	}); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove trip %s: %w", tripID, err)
	}
	s.audit.Record(ctx, audit.Entry{TripID: tripID, Op: audit.OpDeleteTrip, RelatedID: key, Reason: reason})
	s.logger.Info("deleted trip", "trip_id", tripID, "backup_key", key)
	return nil
}

// DeleteCostData snapshots the finance section, then strips it along with
// every cost tracking link across the itinerary.
func (s *Store) DeleteCostData(ctx context.Context, tripID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(tripID)
	if err != nil {
		return err
	}
	release := s.locks.acquire(path)
	defer release()

	doc, err := s.loadLocked(ctx, tripID, path)
	if err != nil {
		return err
	}
	deletedAt := s.now().UTC()
	full := domain.CloneDocument(doc)
	snapshot := &domain.TripDocument{
		SchemaVersion: doc.SchemaVersion,
		ID:            doc.ID,
		Title:         doc.Title,
		Finance:       full.Finance,
		BackupMetadata: &domain.BackupMetadata{
			DeletedAt:  deletedAt,
			OriginalID: tripID,
			BackupType: domain.BackupCost,
			Reason:     reason,
		},
	}
	key := fmt.Sprintf("deleted-cost-%s-%s.json", tripID, s.timestamp())
	info, err := s.archiveSnapshot(ctx, key, snapshot)
	if err != nil {
		return fmt.Errorf("backup cost data for trip %s: %w", tripID, err)
	}
	if err := s.recordBackup(ctx, catalog.Record{
		OriginalID: tripID,
		Kind:       domain.BackupCost,
		Title:      doc.Title,
		DeletedAt:  deletedAt,
		ArchiveKey: key,
		SizeBytes:  info.Size,
		Checksum:   info.Checksum,
		Reason:     reason,
	}); err != nil {
		return err
	}

	stripped := domain.CloneDocument(doc)
	stripped.Finance = nil
	stripCostTrackingLinks(stripped)
	if err := writeDocument(path, stripped); err != nil {
		return fmt.Errorf("persist trip %s after cost delete: %w", tripID, err)
	}
	s.audit.Record(ctx, audit.Entry{TripID: tripID, Op: audit.OpDeleteCostData, RelatedID: key, Reason: reason})
	s.logger.Info("deleted cost data", "trip_id", tripID, "backup_key", key)
	return nil
}

// stripCostTrackingLinks empties every link slice on locations, routes,
// sub-routes, and accommodations. Slices stay non-nil so the historical
// format keeps its arrays.
func stripCostTrackingLinks(doc *domain.TripDocument) {
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

// Restore writes a backup snapshot back as the live document. Without
// overwrite a live trip is a conflict.
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
	path, err := s.pathFor(migrated.ID)
	if err != nil {
		return nil, err
	}
	release := s.locks.acquire(path)
	defer release()

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, domain.ConflictError{Code: domain.CodeTripExists, TripID: migrated.ID}
		}
	}
	if err := writeDocument(path, migrated); err != nil {
		return nil, fmt.Errorf("restore trip %s: %w", migrated.ID, err)
	}
	s.audit.Record(ctx, audit.Entry{TripID: migrated.ID, Op: audit.OpRestoreTrip})
	s.logger.Info("restored trip", "trip_id", migrated.ID)
	return domain.CloneDocument(migrated), nil
}

// RestoreCostData merges a snapshot's finance section into the live
// document. The itinerary stays the live one; links are reconciled by the
// consistency sweep rather than blindly overwritten.
func (s *Store) RestoreCostData(ctx context.Context, snapshot *domain.TripDocument) (*domain.TripDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	path, err := s.pathFor(snapshot.ID)
	if err != nil {
		return nil, err
	}
	release := s.locks.acquire(path)
	defer release()

	live, err := s.loadLocked(ctx, snapshot.ID, path)
	if err != nil {
		return nil, err
	}
	live.Finance = domain.CloneDocument(snapshot).Finance
	repaired, _ := s.migrator.Repair(live)
	if err := writeDocument(path, repaired); err != nil {
		return nil, fmt.Errorf("restore cost data for trip %s: %w", snapshot.ID, err)
	}
	s.audit.Record(ctx, audit.Entry{TripID: snapshot.ID, Op: audit.OpRestoreCostData})
	s.logger.Info("restored cost data", "trip_id", snapshot.ID)
	return domain.CloneDocument(repaired), nil
}

// List scans trip files and returns summaries without migrating. Unreadable
// files are skipped with a warning; listing is a best-effort overview.
func (s *Store) List(ctx context.Context) ([]domain.TripSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan store directory: %w", err)
	}
	var out []domain.TripSummary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable trip file", "file", name, "error", err)
			continue
		}
		var doc domain.TripDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("skipping unparseable trip file", "file", name, "error", err)
			continue
		}
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

// archiveSnapshot writes the snapshot to the archive in the on-disk document
// format.
func (s *Store) archiveSnapshot(ctx context.Context, key string, doc *domain.TripDocument) (archive.Info, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return archive.Info{}, err
	}
	return s.archive.Put(ctx, key, bytes.NewReader(data))
}

func (s *Store) recordBackup(ctx context.Context, rec catalog.Record) error {
	if s.hook == nil {
		return nil
	}
	if _, err := s.hook.Add(ctx, rec); err != nil {
		return fmt.Errorf("record backup %s: %w", rec.ArchiveKey, err)
	}
	return nil
}

// writeDocument replaces the file atomically: temp file in the same
// directory, fsync, rename. Readers never observe a half-written document.
func writeDocument(path string, doc *domain.TripDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

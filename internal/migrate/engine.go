// Package migrate upgrades trip documents across the historical on-disk
// layouts. The engine applies the minimal suffix of the version chain, then an
// idempotent consistency sweep that repairs cross-reference damage regardless
// of the version a document claims. Migration never fails for fixable
// inconsistency; it repairs, records an audit entry, and moves on. The only
// error is an invalid starting version, which is caller error.
package migrate

import (
	"context"
	"time"

	"tripcore/internal/audit"
	"tripcore/pkg/domain"
	"tripcore/pkg/logging"
)

// step is one pure version transition. Steps receive a document they own
// (already cloned by the driver) and mutate it in place.
type step struct {
	from  int
	apply func(*stepContext, *domain.TripDocument)
}

type stepContext struct {
	ctx    context.Context
	tripID string
	audit  audit.Recorder
	logger logging.Logger
	now    func() time.Time
}

func (c *stepContext) record(e audit.Entry) {
	e.TripID = c.tripID
	e.Time = c.now()
	c.audit.Record(c.ctx, e)
}

// Engine drives the version chain and the consistency sweep.
type Engine struct {
	audit  audit.Recorder
	logger logging.Logger
	clock  func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAudit sets the recorder receiving structured repair entries.
func WithAudit(r audit.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.audit = r
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// New constructs an engine. Without options it repairs silently.
func New(opts ...Option) *Engine {
	e := &Engine{
		audit:  audit.Noop(),
		logger: logging.Noop(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// chain lists every historical transition in order. Each entry upgrades from
// its version to the next one. The v1→v2 extraction and the v3→v4 re-run
// share one implementation: the extraction is written against the final
// policy and recognizes the half-extracted shape the original buggy step left
// behind, so running it again completes rather than duplicates.
var chain = []step{
	{from: 1, apply: extractEmbeddedAccommodations},
	{from: 2, apply: purgeDanglingLinks},
	{from: 3, apply: extractEmbeddedAccommodations},
	{from: 4, apply: synchronizeLinks},
	{from: 5, apply: rebindPlaceholderLocations},
	{from: 6, apply: recreateMissingAccommodations},
}

// Apply upgrades doc to domain.CurrentSchemaVersion and runs the consistency
// sweep. The returned flag reports whether anything changed; the input is
// never mutated. A version below 1 (after treating a missing field as 1) or
// above the current version yields InvalidSchemaVersionError.
func (e *Engine) Apply(doc *domain.TripDocument) (*domain.TripDocument, bool, error) {
	return e.apply(context.Background(), doc)
}

// ApplyContext is Apply with the caller's context threaded to audit records.
func (e *Engine) ApplyContext(ctx context.Context, doc *domain.TripDocument) (*domain.TripDocument, bool, error) {
	return e.apply(ctx, doc)
}

func (e *Engine) apply(ctx context.Context, doc *domain.TripDocument) (*domain.TripDocument, bool, error) {
	version := doc.SchemaVersion
	if version == 0 {
		// Files older than the version field are structurally v1.
		version = 1
	}
	if version < 1 || version > domain.CurrentSchemaVersion {
		return nil, false, domain.InvalidSchemaVersionError{TripID: doc.ID, Version: doc.SchemaVersion}
	}

	work := domain.CloneDocument(doc)
	work.SchemaVersion = version
	sc := &stepContext{ctx: ctx, tripID: work.ID, audit: e.audit, logger: e.logger, now: e.clock}

	upgraded := version != domain.CurrentSchemaVersion
	for _, s := range chain {
		if s.from < version {
			continue
		}
		s.apply(sc, work)
		work.SchemaVersion = s.from + 1
	}

	repaired := sweep(sc, work)
	if upgraded {
		e.logger.Info("migrated trip document",
			"trip_id", work.ID, "from_version", version, "to_version", work.SchemaVersion)
	}
	return work, upgraded || repaired, nil
}

// Repair runs only the consistency sweep on a document already at the current
// version. Used when merging restored financial data onto an itinerary that
// evolved after the backup was taken. The input is never mutated.
func (e *Engine) Repair(doc *domain.TripDocument) (*domain.TripDocument, bool) {
	work := domain.CloneDocument(doc)
	sc := &stepContext{ctx: context.Background(), tripID: work.ID, audit: e.audit, logger: e.logger, now: e.clock}
	changed := sweep(sc, work)
	return work, changed
}

// sweep runs every repair policy once, in chain order. Each policy is a fixed
// point after one pass, so the sweep is idempotent and documents stamped at
// the current version still get their latent corruption fixed.
func sweep(sc *stepContext, doc *domain.TripDocument) bool {
	before := documentFingerprint(doc)
	extractEmbeddedAccommodations(sc, doc)
	purgeDanglingLinks(sc, doc)
	synchronizeLinks(sc, doc)
	rebindPlaceholderLocations(sc, doc)
	recreateMissingAccommodations(sc, doc)
	return documentFingerprint(doc) != before
}

// Package audit records the structured repair and lifecycle trail produced by
// the migration engine and the persistence engine: which trip was touched,
// what was changed or dropped, and why. Entries carry machine-readable fields
// so tests and operators query structure instead of matching log text.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripcore/pkg/logging"
)

// Operations recorded by the core.
const (
	OpPurgeDanglingLink     = "purge_dangling_link"
	OpCompleteExtraction    = "complete_extraction"
	OpSyncLink              = "sync_link"
	OpDropOrphanReference   = "drop_orphan_reference"
	OpRebindPlaceholder     = "rebind_placeholder"
	OpOrphanAccommodation   = "orphan_accommodation"
	OpRecreateAccommodation = "recreate_accommodation"
	OpCorruptionRecovery    = "corruption_recovery"
	OpCorruptionUnrecovered = "corruption_unrecovered"
	OpDeleteTrip            = "delete_trip"
	OpDeleteCostData        = "delete_cost_data"
	OpRestoreTrip           = "restore_trip"
	OpRestoreCostData       = "restore_cost_data"
)

// Entry is one structured audit record.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	TripID     string    `json:"tripId"`
	Op         string    `json:"op"`
	EntityKind string    `json:"entityKind,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	RelatedID  string    `json:"relatedId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Recorder accepts audit entries. Implementations must be safe for
// concurrent use; Record never fails (auditing must not block repairs).
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, Entry) {}

// Noop returns a recorder that drops everything.
func Noop() Recorder { return noopRecorder{} }

// MemoryRecorder retains entries in arrival order, newest last.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryRecorder constructs an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

// Record stamps missing ID/Time fields and appends the entry.
func (r *MemoryRecorder) Record(_ context.Context, e Entry) {
	stamp(&e)
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of all recorded entries.
func (r *MemoryRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ByOp returns the recorded entries matching op, in arrival order.
func (r *MemoryRecorder) ByOp(op string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

// LogRecorder forwards entries to a logger at info level.
type LogRecorder struct {
	logger logging.Logger
}

// NewLogRecorder wraps a logger as a recorder. A nil logger yields a noop.
func NewLogRecorder(l logging.Logger) *LogRecorder {
	if l == nil {
		l = logging.Noop()
	}
	return &LogRecorder{logger: l}
}

// Record logs the entry's structured fields.
func (r *LogRecorder) Record(_ context.Context, e Entry) {
	stamp(&e)
	r.logger.Info("audit",
		"op", e.Op,
		"trip_id", e.TripID,
		"entity_kind", e.EntityKind,
		"entity_id", e.EntityID,
		"related_id", e.RelatedID,
		"reason", e.Reason,
	)
}

// MultiRecorder fans entries out to several recorders.
type MultiRecorder []Recorder

// Record forwards the entry to every recorder in order.
func (m MultiRecorder) Record(ctx context.Context, e Entry) {
	stamp(&e)
	for _, r := range m {
		if r != nil {
			r.Record(ctx, e)
		}
	}
}

func stamp(e *Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
}

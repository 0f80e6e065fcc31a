package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"tripcore/pkg/domain"
)

// Memory is the in-memory catalog driver for tests and ephemeral runs.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewMemory constructs an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) Add(_ context.Context, rec Record) (Record, error) {
	stampRecord(&rec, m.now)
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return rec, nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, domain.NewBackupNotFound(id)
}

func (m *Memory) List(_ context.Context, filter Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if filter.matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeletedAt.After(out[j].DeletedAt) })
	return out, nil
}

func (m *Memory) Close() error { return nil }

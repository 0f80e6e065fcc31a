package fsjson

import "sync"

// pathLocks serializes operations per file path. Entries are reference
// counted and dropped when the last holder releases, so the table stays
// bounded by in-flight operations. The table is owned by one Store; two
// stores never contend through shared state.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: map[string]*pathLock{}}
}

// acquire blocks until the path is free and returns the release function.
// A writer that crashed mid-operation still releases via defer, so later
// acquirers block behind the in-flight operation regardless of its outcome.
func (p *pathLocks) acquire(path string) func() {
	p.mu.Lock()
	l := p.locks[path]
	if l == nil {
		l = &pathLock{}
		p.locks[path] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, path)
		}
		p.mu.Unlock()
	}
}

// size reports the number of live entries, for tests asserting the table
// drains.
func (p *pathLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

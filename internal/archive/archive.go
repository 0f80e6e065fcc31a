// Package archive defines the backup snapshot store consumed by the
// persistence engine. Snapshots are immutable: Put is create-only, and the
// backup catalog (not the archive) is the metadata system of record.
package archive

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors shared by every driver.
var (
	// ErrKeyExists is returned by Put when the key already holds a snapshot.
	ErrKeyExists = errors.New("archive: key already exists")
	// ErrNotFound is returned when the requested key has no snapshot.
	ErrNotFound = errors.New("archive: key not found")
)

// Info describes one archived snapshot.
type Info struct {
	Key         string
	Size        int64
	Checksum    string // sha256 hex of the content
	ContentType string
	CreatedAt   time.Time
}

// Store is the archive contract. Implementations must be safe for concurrent
// use.
type Store interface {
	// Put archives the reader's content under key, computing the checksum
	// while writing. Fails with ErrKeyExists when the key is taken.
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	// Get opens an archived snapshot for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	// Head returns snapshot metadata without opening the content.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes a snapshot. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// List returns snapshots whose key starts with prefix, key-ordered.
	List(ctx context.Context, prefix string) ([]Info, error)
	// Driver names the backing implementation.
	Driver() string
}

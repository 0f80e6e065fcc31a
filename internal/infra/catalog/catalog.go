// Package catalog is the backup metadata store: one record per archived
// snapshot (deletion backups and corruption quarantines), listable and
// verifiable independently of the archive bytes. The persistence engine
// writes records through the narrow BackupHook interface; drivers are
// selected by environment, mirroring the trip store's configuration.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripcore/pkg/domain"
)

// Record is one catalog row.
type Record struct {
	ID         string            `json:"id"`
	OriginalID string            `json:"originalId"`
	Kind       domain.BackupKind `json:"kind"`
	Title      string            `json:"title"`
	DeletedAt  time.Time         `json:"deletedAt"`
	ArchiveKey string            `json:"archiveKey"`
	SizeBytes  int64             `json:"sizeBytes"`
	Checksum   string            `json:"checksum"`
	Reason     string            `json:"reason,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	OriginalID string
	Kind       domain.BackupKind
}

func (f Filter) matches(r Record) bool {
	if f.OriginalID != "" && r.OriginalID != f.OriginalID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	return true
}

// Store is the catalog contract. Add fills ID and CreatedAt when empty; Get
// reports a missing record as NotFoundError with BACKUP_NOT_FOUND; List
// returns newest deletions first.
type Store interface {
	Add(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	Close() error
}

func stampRecord(rec *Record, now func() time.Time) {
	if rec.ID == "" {
		rec.ID = domain.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now()
	}
}

// OpenFromEnv selects a catalog driver using environment variables, read
// through getenv (pass os.Getenv in production):
//
//	TRIPCORE_CATALOG_DRIVER: sqlite|postgres|memory (default sqlite)
//	TRIPCORE_CATALOG_SQLITE_PATH: sqlite file (default <data>/backups/catalog.db)
//	TRIPCORE_CATALOG_POSTGRES_DSN: postgres DSN when driver=postgres
//	TRIPCORE_DATA_DIR: data directory the sqlite default is derived from
func OpenFromEnv(getenv func(string) string) (Store, error) {
	driver := getenv("TRIPCORE_CATALOG_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	switch strings.ToLower(driver) {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		path := getenv("TRIPCORE_CATALOG_SQLITE_PATH")
		if path == "" {
			dataDir := getenv("TRIPCORE_DATA_DIR")
			if dataDir == "" {
				dataDir = "./data"
			}
			path = dataDir + "/backups/catalog.db"
		}
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(getenv("TRIPCORE_CATALOG_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown catalog driver %s", driver)
	}
}

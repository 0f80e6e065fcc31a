package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"tripcore/pkg/domain"
)

const (
	postgresDriver     = "pgx"
	defaultPostgresDSN = "postgres://localhost/tripcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// Postgres is the catalog driver for deployments with a shared database.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

const postgresDDL = `CREATE TABLE IF NOT EXISTS backup_records (
	id TEXT PRIMARY KEY,
	original_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	deleted_at TIMESTAMPTZ NOT NULL,
	archive_key TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	checksum TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

// NewPostgres opens a catalog backed by the given DSN (falls back to a local
// default) and ensures the backup_records table exists.
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure backup_records table: %w", err)
	}
	return &Postgres{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (p *Postgres) Add(ctx context.Context, rec Record) (Record, error) {
	stampRecord(&rec, p.now)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO backup_records(id, original_id, kind, title, deleted_at, archive_key, size_bytes, checksum, reason, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.OriginalID, string(rec.Kind), rec.Title, rec.DeletedAt.UTC(),
		rec.ArchiveKey, rec.SizeBytes, rec.Checksum, rec.Reason, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert backup record: %w", err)
	}
	return rec, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Record, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, original_id, kind, title, deleted_at, archive_key, size_bytes, checksum, reason, created_at
		 FROM backup_records WHERE id = $1`, id)
	rec, err := scanPostgresRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, domain.NewBackupNotFound(id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("select backup record: %w", err)
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, original_id, kind, title, deleted_at, archive_key, size_bytes, checksum, reason, created_at
		 FROM backup_records WHERE 1=1`
	var args []any
	if filter.OriginalID != "" {
		args = append(args, filter.OriginalID)
		query += fmt.Sprintf(` AND original_id = $%d`, len(args))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	query += ` ORDER BY deleted_at DESC`
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select backup records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		rec, err := scanPostgresRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan backup record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup records: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (p *Postgres) DB() *sql.DB { return p.db }

func scanPostgresRecord(scan func(...any) error) (Record, error) {
	var rec Record
	var kind string
	if err := scan(&rec.ID, &rec.OriginalID, &kind, &rec.Title, &rec.DeletedAt,
		&rec.ArchiveKey, &rec.SizeBytes, &rec.Checksum, &rec.Reason, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.Kind = domain.BackupKind(kind)
	return rec, nil
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"tripcore/pkg/domain"
)

// SQLite is the default catalog driver: a single backup_records table in an
// embedded database next to the archive.
type SQLite struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const sqliteDDL = `CREATE TABLE IF NOT EXISTS backup_records (
	id TEXT PRIMARY KEY,
	original_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	deleted_at TEXT NOT NULL,
	archive_key TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`

// NewSQLite opens (creating if needed) the catalog database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "catalog.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create backup_records table: %w", err)
	}
	return &SQLite{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLite) Add(ctx context.Context, rec Record) (Record, error) {
	stampRecord(&rec, s.now)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backup_records(id, original_id, kind, title, deleted_at, archive_key, size_bytes, checksum, reason, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.OriginalID, string(rec.Kind), rec.Title,
		rec.DeletedAt.UTC().Format(time.RFC3339Nano), rec.ArchiveKey,
		rec.SizeBytes, rec.Checksum, rec.Reason,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert backup record: %w", err)
	}
	return rec, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, original_id, kind, title, deleted_at, archive_key, size_bytes, checksum, reason, created_at
		 FROM backup_records WHERE id = ?`, id)
	rec, err := scanSQLiteRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, domain.NewBackupNotFound(id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("select backup record: %w", err)
	}
	return rec, nil
}

func (s *SQLite) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, original_id, kind, title, deleted_at, archive_key, size_bytes, checksum, reason, created_at
		 FROM backup_records WHERE 1=1`
	var args []any
	if filter.OriginalID != "" {
		query += ` AND original_id = ?`
		args = append(args, filter.OriginalID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY deleted_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select backup records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows.Scan)
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

func (s *SQLite) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *SQLite) Path() string { return s.path }

func scanSQLiteRecord(scan func(...any) error) (Record, error) {
	var rec Record
	var kind, deletedAt, createdAt string
	if err := scan(&rec.ID, &rec.OriginalID, &kind, &rec.Title, &deletedAt,
		&rec.ArchiveKey, &rec.SizeBytes, &rec.Checksum, &rec.Reason, &createdAt); err != nil {
		return Record{}, err
	}
	rec.Kind = domain.BackupKind(kind)
	var err error
	if rec.DeletedAt, err = time.Parse(time.RFC3339Nano, deletedAt); err != nil {
		return Record{}, fmt.Errorf("parse deleted_at: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	return rec, nil
}

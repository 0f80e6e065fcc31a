// Package testutil provides a stub database/sql driver for catalog postgres
// tests, understanding exactly the statements the catalog issues against its
// backup_records table.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// StubConn records statements and keeps backup_records rows in memory.
type StubConn struct {
	Execs     []string
	Rows      []map[string]driver.Value
	FailPing  bool
	FailExec  bool
	FailQuery bool
}

var backupColumns = []string{
	"id", "original_id", "kind", "title", "deleted_at",
	"archive_key", "size_bytes", "checksum", "reason", "created_at",
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *StubConn) Close() error                        { return nil }
func (c *StubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext for the DDL and insert paths.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		if len(args) != len(backupColumns) {
			return nil, fmt.Errorf("expected %d args, got %d", len(backupColumns), len(args))
		}
		row := make(map[string]driver.Value, len(backupColumns))
		for i, col := range backupColumns {
			row[col] = args[i].Value
		}
		c.Rows = append(c.Rows, row)
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for the select paths,
// honoring "col = $n" predicates and the deleted_at DESC ordering.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	matched := make([]map[string]driver.Value, 0, len(c.Rows))
	conds := parseConditions(query)
	for _, row := range c.Rows {
		ok := true
		for col, argIdx := range conds {
			if argIdx > len(args) || row[col] != args[argIdx-1].Value {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, row)
		}
	}
	if strings.Contains(strings.ToUpper(query), "ORDER BY DELETED_AT DESC") {
		sort.SliceStable(matched, func(i, j int) bool {
			ti, _ := matched[i]["deleted_at"].(time.Time)
			tj, _ := matched[j]["deleted_at"].(time.Time)
			return ti.After(tj)
		})
	}
	values := make([][]driver.Value, 0, len(matched))
	for _, row := range matched {
		vals := make([]driver.Value, len(backupColumns))
		for i, col := range backupColumns {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: backupColumns, rows: values}, nil
}

// parseConditions extracts "col = $n" pairs from the WHERE clause.
func parseConditions(query string) map[string]int {
	out := map[string]int{}
	lower := strings.ToLower(query)
	idx := strings.Index(lower, " where ")
	if idx == -1 {
		return out
	}
	clause := lower[idx+len(" where "):]
	if ord := strings.Index(clause, " order by "); ord != -1 {
		clause = clause[:ord]
	}
	for _, cond := range strings.Split(clause, " and ") {
		parts := strings.SplitN(cond, "=", 2)
		if len(parts) != 2 {
			continue
		}
		col := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if !strings.HasPrefix(val, "$") {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(val, "$%d", &n); err == nil {
			out[col] = n
		}
	}
	return out
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb/v2"
)

// Settings are applied to every connection of a session
type Settings struct {
	Threads       int // 0 leaves the engine default
	MemoryLimitGB int // 0 leaves the engine default
}

// DB wraps a DuckDB database used as per-file scratch storage
// ⭐ SSOT: DuckDB sessions are only opened in this package
type DB struct {
	Conn *sql.DB
	Path string // empty for in-memory
}

// Open opens (or creates) the DuckDB file at path. An empty path opens an
// in-memory database.
func Open(ctx context.Context, path string, s Settings) (*DB, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, stmt := range s.statements() {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", path, err)
	}

	conn := sql.OpenDB(connector)

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	return &DB{Conn: conn, Path: path}, nil
}

func (s Settings) statements() []string {
	var stmts []string
	if s.Threads > 0 {
		stmts = append(stmts, fmt.Sprintf("SET threads = %d", s.Threads))
	}
	if s.MemoryLimitGB > 0 {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit = '%dGB'", s.MemoryLimitGB))
	}
	return stmts
}

// Close closes the database and its connector
func (db *DB) Close() error {
	if db.Conn == nil {
		return nil
	}
	return db.Conn.Close()
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

// Exec runs a statement and returns the number of affected rows
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := db.Conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some statements (DDL, SET) report no count.
		return 0, nil
	}
	return n, nil
}

// Count returns the row count of table
func (db *DB) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(table))
	if err := db.Conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// TableExists reports whether table is present in the main schema
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var n int64
	err := db.Conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?`,
		table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", table, err)
	}
	return n > 0, nil
}

// Version returns the engine version string
func (db *DB) Version(ctx context.Context) (string, error) {
	var v string
	if err := db.Conn.QueryRowContext(ctx, "SELECT version()").Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// Appender streams rows into a single table
type Appender struct {
	app   *duckdb.Appender
	table string
	rows  int64
}

// Append adds one row. Values must match the table's column order.
func (a *Appender) Append(vals ...driver.Value) error {
	if err := a.app.AppendRow(vals...); err != nil {
		return fmt.Errorf("append %s row %d: %w", a.table, a.rows+1, err)
	}
	a.rows++
	return nil
}

// Flush makes appended rows visible to other connections
func (a *Appender) Flush() error {
	if err := a.app.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", a.table, err)
	}
	return nil
}

// Rows returns the number of rows appended so far
func (a *Appender) Rows() int64 {
	return a.rows
}

// WithAppender runs fn with an appender on a dedicated connection.
// The appender is flushed and closed when fn returns; other queries on db
// may run concurrently from inside fn.
func (db *DB) WithAppender(ctx context.Context, table string, fn func(a *Appender) error) error {
	conn, err := db.Conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("appender connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}

		app, err := duckdb.NewAppenderFromConn(dc, "", table)
		if err != nil {
			return fmt.Errorf("appender %s: %w", table, err)
		}

		a := &Appender{app: app, table: table}
		fnErr := fn(a)
		closeErr := app.Close()
		if fnErr != nil {
			return fnErr
		}
		if closeErr != nil {
			return fmt.Errorf("close appender %s: %w", table, closeErr)
		}
		return nil
	})
}

// HealthCheck returns detailed health information about the engine
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Healthy:   false,
		Timestamp: time.Now(),
		Path:      db.Path,
	}

	start := time.Now()
	version, err := db.Version(ctx)
	if err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)
	status.Version = version

	status.Healthy = true
	return status, nil
}

// HealthStatus represents the health status of the engine
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Version      string        `json:"version"`
	Path         string        `json:"path,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ScratchPath returns the scratch database path for an input file:
// the input path with its extension replaced by .duckdb
func ScratchPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".duckdb"
}

// RemoveFiles deletes a database file and its write-ahead log.
// Missing files are not an error.
func RemoveFiles(path string) error {
	var errs []error
	for _, p := range []string{path, path + ".wal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Quote renders s as a SQL string literal
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdent renders name as a quoted SQL identifier
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

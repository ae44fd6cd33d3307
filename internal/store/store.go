package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/querycraft/querycraft/internal/qerr"
	"github.com/querycraft/querycraft/internal/sqlguard"
)

// TableDefinition is one catalog entry: the table name and the store's own
// definition text for it.
type TableDefinition struct {
	Name       string
	Definition string
}

type Store interface {
	Tables(ctx context.Context) ([]TableDefinition, error)
	Query(ctx context.Context, query sqlguard.VettedQuery) (ResultSet, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Dialect supplies the catalog query of one relational engine.
type Dialect interface {
	Name() string
	Tables(ctx context.Context, conn *sql.Conn) ([]TableDefinition, error)
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func (c PoolConfig) Apply(db *sql.DB) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
}

type Options struct {
	// MaxRows stops reading after this many rows; zero reads everything.
	MaxRows int
	// Available is consulted before every store access. File-backed dialects
	// use it to report a missing database file as StoreUnavailable.
	Available func(ctx context.Context) error
}

// SQLStore executes vetted queries over a database/sql pool. Every call
// checks out its own connection, so concurrent requests never share one.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	opts    Options
}

func New(db *sql.DB, dialect Dialect, opts Options) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, opts: opts}
}

func (s *SQLStore) Dialect() string {
	return s.dialect.Name()
}

func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if err := s.available(ctx); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return qerr.Wrap(qerr.StoreUnavailable, "ping store", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Tables(ctx context.Context) ([]TableDefinition, error) {
	if err := s.available(ctx); err != nil {
		return nil, err
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, qerr.Wrap(qerr.StoreUnavailable, "acquire store connection", err)
	}
	defer func() { _ = conn.Close() }()

	tables, err := s.dialect.Tables(ctx, conn)
	if err != nil {
		return nil, qerr.Wrap(qerr.StoreUnavailable, "list tables", err)
	}
	return tables, nil
}

// Query runs exactly one vetted statement and converts its rows. Chained
// text is refused before a connection is checked out, whatever mode the gate
// ran in. The connection is released on every exit path.
func (s *SQLStore) Query(ctx context.Context, query sqlguard.VettedQuery) (ResultSet, error) {
	sqlText := stripTrailingSemicolons(query.String())
	if sqlText == "" {
		return ResultSet{}, qerr.New(qerr.ExecutionError, "SQL execution error: empty statement")
	}
	if !sqlguard.SingleStatement(sqlText) {
		return ResultSet{}, qerr.New(qerr.ExecutionError, "SQL execution error: You can only execute one statement at a time.")
	}
	if err := s.available(ctx); err != nil {
		return ResultSet{}, err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return ResultSet{}, qerr.Wrap(qerr.StoreUnavailable, "acquire store connection", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return ResultSet{}, classifyQueryErr(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, qerr.Wrap(qerr.ExecutionError, "SQL execution error", err)
	}
	databaseTypes := make([]string, len(columns))
	if columnTypes, err := rows.ColumnTypes(); err == nil {
		for i, columnType := range columnTypes {
			if i < len(databaseTypes) {
				databaseTypes[i] = columnType.DatabaseTypeName()
			}
		}
	}

	result := ResultSet{Columns: columns, Rows: make([]Row, 0)}
	for rows.Next() {
		if s.opts.MaxRows > 0 && len(result.Rows) >= s.opts.MaxRows {
			break
		}
		raw := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range raw {
			scanTargets[i] = &raw[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, qerr.Wrap(qerr.ExecutionError, "SQL execution error", fmt.Errorf("scan row: %w", err))
		}
		values := make([]Value, len(columns))
		for i, cell := range raw {
			values[i] = FromDriver(cell, databaseTypes[i])
		}
		result.Rows = append(result.Rows, NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, classifyQueryErr(err)
	}
	return result, nil
}

func (s *SQLStore) available(ctx context.Context) error {
	if s.opts.Available == nil {
		return nil
	}
	return s.opts.Available(ctx)
}

// RequireFile reports StoreUnavailable while path does not exist.
func RequireFile(path string) func(context.Context) error {
	return func(context.Context) error {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return qerr.New(qerr.StoreUnavailable, fmt.Sprintf("Database not found at %s.", path))
			}
			return qerr.Wrap(qerr.StoreUnavailable, "stat database file", err)
		}
		return nil
	}
}

func classifyQueryErr(err error) error {
	var netErr *net.OpError
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return qerr.Wrap(qerr.StoreUnavailable, "store connection failed", err)
	}
	return qerr.Wrap(qerr.ExecutionError, "SQL execution error", err)
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// QuoteIdent quotes an identifier with double quotes.
func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// Package sqlite opens a file-backed SQLite database read-only and lists its
// tables from sqlite_master.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/querycraft/querycraft/internal/store"
)

const DriverName = "sqlite3"

type Config struct {
	Path string
	Pool store.PoolConfig
}

// DSN builds a read-only URI for path. The query_only pragma is set as well
// so a statement that slips past the gate still cannot write.
func DSN(path string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro&_query_only=true"
}

func Open(cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open(DriverName, DSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	cfg.Pool.Apply(db)
	return db, nil
}

// NewStore opens the database and reports a missing file as an unavailable
// store on every call rather than failing at startup.
func NewStore(cfg Config, opts store.Options) (*store.SQLStore, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Available == nil {
		opts.Available = store.RequireFile(cfg.Path)
	}
	return store.New(db, Dialect{}, opts), nil
}

type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Tables(ctx context.Context, conn *sql.Conn) ([]store.TableDefinition, error) {
	rows, err := conn.QueryContext(ctx, `SELECT name, sql FROM sqlite_master WHERE type='table'`)
	if err != nil {
		return nil, fmt.Errorf("query sqlite_master: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []store.TableDefinition
	for rows.Next() {
		var name string
		var definition sql.NullString
		if err := rows.Scan(&name, &definition); err != nil {
			return nil, fmt.Errorf("scan sqlite_master row: %w", err)
		}
		tables = append(tables, store.TableDefinition{Name: name, Definition: definition.String})
	}
	return tables, rows.Err()
}

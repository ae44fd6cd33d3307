package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/querycraft/querycraft/internal/store"
)

const DriverName = "duckdb"

type Config struct {
	Path string
	Pool store.PoolConfig
}

// DSN returns the read-only connection string for a database file. An empty
// path opens a private in-memory database.
func DSN(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return path + "?access_mode=read_only"
}

func Open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open(DriverName, DSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	cfg.Pool.Apply(db)
	return db, nil
}

func NewStore(cfg Config, opts store.Options) (*store.SQLStore, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Available == nil && strings.TrimSpace(cfg.Path) != "" {
		opts.Available = store.RequireFile(cfg.Path)
	}
	return store.New(db, Dialect{}, opts), nil
}

type Dialect struct{}

func (Dialect) Name() string { return "duckdb" }

func (Dialect) Tables(ctx context.Context, conn *sql.Conn) ([]store.TableDefinition, error) {
	rows, err := conn.QueryContext(ctx, `SELECT table_name, sql FROM duckdb_tables() WHERE NOT internal ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("query duckdb_tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []store.TableDefinition
	for rows.Next() {
		var name string
		var definition sql.NullString
		if err := rows.Scan(&name, &definition); err != nil {
			return nil, fmt.Errorf("scan duckdb_tables row: %w", err)
		}
		tables = append(tables, store.TableDefinition{Name: name, Definition: definition.String})
	}
	return tables, rows.Err()
}

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/querycraft/querycraft/internal/store"
)

const DriverName = "mysql"

type Config struct {
	DSN  string
	Pool store.PoolConfig
}

func Open(cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	db, err := sql.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql db: %w", err)
	}
	cfg.Pool.Apply(db)
	return db, nil
}

func NewStore(cfg Config, opts store.Options) (*store.SQLStore, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return store.New(db, Dialect{}, opts), nil
}

type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Tables(ctx context.Context, conn *sql.Conn) ([]store.TableDefinition, error) {
	names, err := tableNames(ctx, conn)
	if err != nil {
		return nil, err
	}

	tables := make([]store.TableDefinition, 0, len(names))
	for _, name := range names {
		var tableName, definition string
		row := conn.QueryRowContext(ctx, "SHOW CREATE TABLE "+quoteIdent(name))
		if err := row.Scan(&tableName, &definition); err != nil {
			return nil, fmt.Errorf("show create table %s: %w", name, err)
		}
		tables = append(tables, store.TableDefinition{Name: name, Definition: definition})
	}
	return tables, nil
}

func tableNames(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW FULL TABLES WHERE Table_type = 'BASE TABLE'")
	if err != nil {
		return nil, fmt.Errorf("show tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func quoteIdent(value string) string {
	return "`" + strings.ReplaceAll(value, "`", "``") + "`"
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/querycraft/querycraft/internal/store"
)

const DriverName = "pgx"

type Config struct {
	DSN    string
	Schema string
	Pool   store.PoolConfig
}

func Open(cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	cfg.Pool.Apply(db)
	return db, nil
}

func NewStore(cfg Config, opts store.Options) (*store.SQLStore, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return store.New(db, Dialect{Schema: cfg.Schema}, opts), nil
}

// Dialect renders every base table of one schema as a CREATE TABLE
// statement. PostgreSQL keeps no DDL text of its own.
type Dialect struct {
	Schema string
}

func (Dialect) Name() string { return "postgres" }

const columnsQuery = `
	SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default
	FROM information_schema.columns c
	JOIN information_schema.tables t
		ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
	ORDER BY c.table_name, c.ordinal_position
`

type column struct {
	name       string
	dataType   string
	nullable   bool
	defaultVal sql.NullString
}

func (d Dialect) Tables(ctx context.Context, conn *sql.Conn) ([]store.TableDefinition, error) {
	schemaName := strings.TrimSpace(d.Schema)
	if schemaName == "" {
		schemaName = "public"
	}

	rows, err := conn.QueryContext(ctx, columnsQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query information_schema.columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var order []string
	columns := map[string][]column{}
	for rows.Next() {
		var tableName, nullable string
		var col column
		if err := rows.Scan(&tableName, &col.name, &col.dataType, &nullable, &col.defaultVal); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.nullable = nullable == "YES"
		if _, seen := columns[tableName]; !seen {
			order = append(order, tableName)
		}
		columns[tableName] = append(columns[tableName], col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]store.TableDefinition, 0, len(order))
	for _, tableName := range order {
		tables = append(tables, store.TableDefinition{
			Name:       tableName,
			Definition: renderCreateTable(tableName, columns[tableName]),
		})
	}
	return tables, nil
}

func renderCreateTable(tableName string, columns []column) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(store.QuoteIdent(tableName))
	b.WriteString(" (\n")
	for i, col := range columns {
		b.WriteString("  ")
		b.WriteString(store.QuoteIdent(col.name))
		b.WriteString(" ")
		b.WriteString(col.dataType)
		if !col.nullable {
			b.WriteString(" NOT NULL")
		}
		if col.defaultVal.Valid {
			b.WriteString(" DEFAULT ")
			b.WriteString(col.defaultVal.String)
		}
		if i < len(columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

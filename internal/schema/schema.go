// Package schema renders the store catalog into the text block the inference
// engine is prompted with.
package schema

import (
	"context"
	"log/slog"
	"strings"

	"github.com/querycraft/querycraft/internal/store"
)

// Unavailable is the description used when the catalog could not be read.
const Unavailable Description = "Error: Could not load schema."

type Description string

func (d Description) String() string { return string(d) }

type Catalog interface {
	Tables(ctx context.Context) ([]store.TableDefinition, error)
}

// Describe reads the catalog once. It never fails: when the store cannot be
// read it logs a warning and returns Unavailable.
func Describe(ctx context.Context, catalog Catalog, logger *slog.Logger) Description {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		logger.Warn("schema catalog is not configured")
		return Unavailable
	}
	tables, err := catalog.Tables(ctx)
	if err != nil {
		logger.Warn("could not load schema", "error", err)
		return Unavailable
	}
	return Render(tables)
}

// Render formats each table as "Table '<name>':\n<definition>\n" and joins
// the blocks with a newline.
func Render(tables []store.TableDefinition) Description {
	blocks := make([]string, 0, len(tables))
	for _, table := range tables {
		blocks = append(blocks, "Table '"+table.Name+"':\n"+table.Definition+"\n")
	}
	return Description(strings.Join(blocks, "\n"))
}

// Provider holds the description built at startup.
type Provider struct {
	description Description
	tables      int
}

func NewProvider(ctx context.Context, catalog Catalog, logger *slog.Logger) *Provider {
	description := Describe(ctx, catalog, logger)
	tables := 0
	if description != Unavailable {
		tables = strings.Count(string(description), "Table '")
	}
	if logger != nil {
		logger.Info("schema description loaded", "tables", tables, "bytes", len(description))
	}
	return &Provider{description: description, tables: tables}
}

// Static wraps a fixed description, typically in tests.
func Static(description Description) *Provider {
	return &Provider{description: description}
}

func (p *Provider) Describe() Description { return p.description }

func (p *Provider) Loaded() bool { return p.description != Unavailable }

package duckdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/querycraft/querycraft/internal/qerr"
	"github.com/querycraft/querycraft/internal/sqlguard"
	"github.com/querycraft/querycraft/internal/store"
)

func TestStoreReadsDuckDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "music.duckdb")
	writer, err := sql.Open(DriverName, path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE artist (artist_id INTEGER, name VARCHAR)`,
		`INSERT INTO artist VALUES (1, 'AC/DC'), (2, 'Accept')`,
	} {
		if _, err := writer.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	s, err := NewStore(Config{Path: path}, store.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	tables, err := s.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 1 || tables[0].Name != "artist" || tables[0].Definition == "" {
		t.Fatalf("tables = %#v", tables)
	}

	vetted, err := sqlguard.New(sqlguard.ModePrefix).Vet("SELECT COUNT(*) AS c FROM artist")
	if err != nil {
		t.Fatalf("Vet() error = %v", err)
	}
	result, err := s.Query(context.Background(), vetted)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	count, _ := result.Rows[0].Get("c")
	if got, ok := count.Int64(); !ok || got != 2 {
		t.Fatalf("count = %v", count)
	}
}

func TestStoreMissingFile(t *testing.T) {
	s, err := NewStore(Config{Path: filepath.Join(t.TempDir(), "absent.duckdb")}, store.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.Tables(context.Background()); !qerr.Is(err, qerr.StoreUnavailable) {
		t.Fatalf("expected StoreUnavailable, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	if DSN("") != "" {
		t.Fatalf("DSN(\"\") = %q", DSN(""))
	}
	if got := DSN("/data/music.duckdb"); got != "/data/music.duckdb?access_mode=read_only" {
		t.Fatalf("DSN() = %q", got)
	}
}

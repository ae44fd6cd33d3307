package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/querycraft/querycraft/internal/qerr"
	"github.com/querycraft/querycraft/internal/sqlguard"
	"github.com/querycraft/querycraft/internal/store"
)

func TestQueryAgainstArtistFixture(t *testing.T) {
	path := writeArtistFixture(t)
	s, err := NewStore(Config{Path: path}, store.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	result, err := s.Query(context.Background(), vet(t, "SELECT Name FROM Artist WHERE Name = 'AC/DC';"))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(encoded) != `[{"Name":"AC/DC"}]` {
		t.Fatalf("result = %s", encoded)
	}
}

func TestQueryUnknownTableIsExecutionError(t *testing.T) {
	path := writeArtistFixture(t)
	s, err := NewStore(Config{Path: path}, store.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Query(context.Background(), vet(t, "SELECT * FROM NoSuchTable;"))
	if !qerr.Is(err, qerr.ExecutionError) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "no such table") {
		t.Fatalf("error = %q", err.Error())
	}
}

func TestQueryRefusesChainedStatements(t *testing.T) {
	path := writeArtistFixture(t)
	s, err := NewStore(Config{Path: path}, store.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sidePath := filepath.Join(t.TempDir(), "side.db")
	testCases := []string{
		"SELECT Name FROM Artist WHERE ArtistId = 1; SELECT 'second statement ran' AS x;",
		"SELECT 1; ATTACH DATABASE '" + sidePath + "' AS side;",
	}
	for _, text := range testCases {
		result, err := s.Query(context.Background(), vet(t, text))
		if !qerr.Is(err, qerr.ExecutionError) {
			t.Fatalf("Query(%q) error = %v, want ExecutionError", text, err)
		}
		if err.Error() != "SQL execution error: You can only execute one statement at a time." {
			t.Fatalf("error = %q", err.Error())
		}
		if result.Rows != nil {
			t.Fatalf("Query(%q) returned rows %v", text, result.Rows)
		}
	}
	if _, err := os.Stat(sidePath); !os.IsNotExist(err) {
		t.Fatalf("attached database file exists: stat err = %v", err)
	}
}

func TestTablesListsSQLiteMaster(t *testing.T) {
	path := writeArtistFixture(t)
	s, err := NewStore(Config{Path: path}, store.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	tables, err := s.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 1 || tables[0].Name != "Artist" {
		t.Fatalf("tables = %#v", tables)
	}
	if !strings.HasPrefix(tables[0].Definition, "CREATE TABLE Artist") {
		t.Fatalf("definition = %q", tables[0].Definition)
	}
}

func TestMissingFileIsStoreUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chinook.db")
	s, err := NewStore(Config{Path: path}, store.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.Tables(context.Background()); !qerr.Is(err, qerr.StoreUnavailable) {
		t.Fatalf("Tables() expected StoreUnavailable, got %v", err)
	}
	if _, err := s.Query(context.Background(), vet(t, "SELECT 1")); !qerr.Is(err, qerr.StoreUnavailable) {
		t.Fatalf("Query() expected StoreUnavailable, got %v", err)
	}
	if err := s.HealthCheck(context.Background()); !qerr.Is(err, qerr.StoreUnavailable) {
		t.Fatalf("HealthCheck() expected StoreUnavailable, got %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDSNIsReadOnly(t *testing.T) {
	dsn := DSN("database/chinook.db")
	if dsn != "file:database/chinook.db?mode=ro&_query_only=true" {
		t.Fatalf("DSN() = %q", dsn)
	}
}

func writeArtistFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open(DriverName, path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE Artist (ArtistId INTEGER PRIMARY KEY, Name NVARCHAR(120))`); err != nil {
		t.Fatalf("create Artist: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO Artist (ArtistId, Name) VALUES (1, 'AC/DC')`); err != nil {
		t.Fatalf("insert AC/DC: %v", err)
	}
	faker := gofakeit.New(42)
	for id := 2; id <= 10; id++ {
		if _, err := db.Exec(`INSERT INTO Artist (ArtistId, Name) VALUES (?, ?)`, id, faker.Company()+" Band"); err != nil {
			t.Fatalf("insert artist %d: %v", id, err)
		}
	}
	return path
}

func vet(t *testing.T, text string) sqlguard.VettedQuery {
	t.Helper()
	vetted, err := sqlguard.New(sqlguard.ModePrefix).Vet(text)
	if err != nil {
		t.Fatalf("Vet(%q) error = %v", text, err)
	}
	return vetted
}

package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/querycraft/querycraft/internal/store"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestTablesRendersCreateTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns c")).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default"}).
			AddRow("album", "album_id", "integer", "NO", "nextval('album_album_id_seq'::regclass)").
			AddRow("album", "title", "character varying", "NO", nil).
			AddRow("artist", "artist_id", "integer", "NO", nil).
			AddRow("artist", "name", "character varying", "YES", nil))

	s := store.New(db, Dialect{}, store.Options{})
	tables, err := s.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("tables = %d", len(tables))
	}
	wantAlbum := "CREATE TABLE \"album\" (\n" +
		"  \"album_id\" integer NOT NULL DEFAULT nextval('album_album_id_seq'::regclass),\n" +
		"  \"title\" character varying NOT NULL\n" +
		")"
	if tables[0].Name != "album" || tables[0].Definition != wantAlbum {
		t.Fatalf("album = %#v", tables[0])
	}
	wantArtist := "CREATE TABLE \"artist\" (\n" +
		"  \"artist_id\" integer NOT NULL,\n" +
		"  \"name\" character varying\n" +
		")"
	if tables[1].Definition != wantArtist {
		t.Fatalf("artist definition = %q", tables[1].Definition)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestTablesUsesConfiguredSchema(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("information_schema").WithArgs("music").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default"}))

	tables, err := store.New(db, Dialect{Schema: "music"}, store.Options{}).Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("tables = %#v", tables)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

// Package setup creates the SQLite database the service reads from. A script
// is fetched from a Source and executed against a fresh file, which is moved
// into place only when every statement succeeded.
package setup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/querycraft/querycraft/internal/store/sqlite"
)

type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

type Report struct {
	Path    string
	Source  string
	Skipped bool
	Bytes   int64
	Tables  []string
}

// Run builds the database at path from source. An existing file is left
// untouched and reported as skipped.
func Run(ctx context.Context, path string, source Source, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := Report{Path: path, Source: source.Name()}

	if _, err := os.Stat(path); err == nil {
		logger.Info("database already exists, skipping setup", slog.String("path", path))
		report.Skipped = true
		return report, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return report, fmt.Errorf("stat database file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return report, fmt.Errorf("create database directory: %w", err)
	}

	script, err := readScript(ctx, source)
	if err != nil {
		return report, err
	}
	report.Bytes = int64(len(script))
	logger.Info("seed script downloaded", slog.String("source", report.Source), slog.Int64("bytes", report.Bytes))

	partial := path + ".partial"
	_ = os.Remove(partial)
	tables, err := executeScript(ctx, partial, script)
	if err != nil {
		_ = os.Remove(partial)
		return report, err
	}
	if err := os.Rename(partial, path); err != nil {
		_ = os.Remove(partial)
		return report, fmt.Errorf("move database into place: %w", err)
	}
	report.Tables = tables

	logger.Info("database created", slog.String("path", path), slog.Int("tables", len(tables)))
	return report, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readScript(ctx context.Context, source Source) (string, error) {
	body, err := source.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open seed script %s: %w", source.Name(), err)
	}
	defer func() { _ = body.Close() }()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read seed script %s: %w", source.Name(), err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", fmt.Errorf("seed script %s is empty", source.Name())
	}
	return string(raw), nil
}

// executeScript runs the whole script on one connection, the way the sqlite3
// shell would, and returns the tables it created.
func executeScript(ctx context.Context, path, script string) ([]string, error) {
	db, err := sql.Open(sqlite.DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	defer func() { _ = db.Close() }()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire database connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, script); err != nil {
		return nil, fmt.Errorf("execute seed script: %w", err)
	}

	definitions, err := sqlite.Dialect{}.Tables(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("list created tables: %w", err)
	}
	tables := make([]string, 0, len(definitions))
	for _, definition := range definitions {
		tables = append(tables, definition.Name)
	}
	return tables, nil
}

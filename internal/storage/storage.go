// Package storage describes the object store the setup tool reads seed
// scripts from and publishes them to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

var ErrScriptNotFound = errors.New("seed script not found")

// ScriptContentType is stored with every published script.
const ScriptContentType = "application/sql"

// ScriptInfo describes one published seed script. Checksum is the hex
// SHA-256 of the script recorded at publish time; it is empty for objects
// uploaded by other tools.
type ScriptInfo struct {
	Name         string
	Key          string
	Size         int64
	Checksum     string
	ETag         string
	LastModified time.Time
}

// ScriptStore keeps seed scripts addressed by name (see SeedScriptKey).
type ScriptStore interface {
	PublishScript(ctx context.Context, name string, script []byte) (ScriptInfo, error)
	OpenScript(ctx context.Context, name string) (io.ReadCloser, error)
	StatScript(ctx context.Context, name string) (ScriptInfo, error)
	ListScripts(ctx context.Context) ([]ScriptInfo, error)
}

const SeedDir = "seeds"

var scriptNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}\.sql$`)

// SeedScriptKey maps a script file name to its object key, for example
// "chinook.sql" to "seeds/chinook.sql". Keys that already carry a directory
// are returned cleaned.
func SeedScriptKey(name string) (string, error) {
	name = strings.TrimSpace(strings.TrimPrefix(name, "/"))
	if strings.Contains(name, "/") {
		cleaned := path.Clean(name)
		if strings.HasPrefix(cleaned, "../") || !strings.HasSuffix(cleaned, ".sql") {
			return "", fmt.Errorf("invalid seed script key: %q", name)
		}
		return cleaned, nil
	}
	if !scriptNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid seed script name: %q", name)
	}
	return path.Join(SeedDir, name), nil
}

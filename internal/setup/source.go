package setup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/querycraft/querycraft/internal/storage"
)

type URLSource struct {
	URL    string
	Client *http.Client
}

func (s URLSource) Name() string { return s.URL }

func (s URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download failed status=%d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ObjectSource reads a published seed script from the object store.
type ObjectSource struct {
	Store  storage.ScriptStore
	Script string
}

func (s ObjectSource) Name() string { return "object:" + s.Script }

func (s ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is not configured")
	}
	return s.Store.OpenScript(ctx, s.Script)
}

// Publish uploads the script from source under name so other instances can
// seed from the object store.
func Publish(ctx context.Context, store storage.ScriptStore, name string, source Source) (storage.ScriptInfo, error) {
	script, err := readScript(ctx, source)
	if err != nil {
		return storage.ScriptInfo{}, err
	}
	info, err := store.PublishScript(ctx, name, []byte(script))
	if err != nil {
		return storage.ScriptInfo{}, fmt.Errorf("publish seed script: %w", err)
	}
	return info, nil
}

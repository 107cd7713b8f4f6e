package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader fetches the access tables from a remote sheet endpoint (JSON)
// or a local YAML file and caches the result. The process default
// http.Client timeout behavior applies to sheet fetches; no explicit
// cancellation is threaded beyond the request context.
type Loader struct {
	sheetURL string
	filePath string
	cacheTTL time.Duration
	client   *http.Client

	mu        sync.Mutex
	cached    *Tables
	fetchedAt time.Time
}

// NewLoader creates a loader. Either sheetURL or filePath may be empty;
// at least one must be set for Tables to succeed.
func NewLoader(sheetURL, filePath string, cacheTTL time.Duration) *Loader {
	return &Loader{
		sheetURL: sheetURL,
		filePath: filePath,
		cacheTTL: cacheTTL,
		client:   http.DefaultClient,
	}
}

// NewStaticLoader returns a loader that always serves the given tables.
func NewStaticLoader(tables *Tables) *Loader {
	return &Loader{
		cached:    tables,
		fetchedAt: time.Now(),
		cacheTTL:  time.Duration(1<<62 - 1),
	}
}

// Tables returns the current access tables, refreshing the cache when
// stale. A stale cache is served as-is when the refresh fails.
func (l *Loader) Tables(ctx context.Context) (*Tables, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && time.Since(l.fetchedAt) < l.cacheTTL {
		return l.cached, nil
	}

	tables, err := l.load(ctx)
	if err != nil {
		if l.cached != nil {
			return l.cached, nil
		}
		return nil, err
	}

	l.cached = tables
	l.fetchedAt = time.Now()
	return tables, nil
}

func (l *Loader) load(ctx context.Context) (*Tables, error) {
	if l.sheetURL != "" {
		tables, err := l.fetchSheet(ctx)
		if err == nil {
			return tables, nil
		}
		if l.filePath == "" {
			return nil, err
		}
	}
	if l.filePath != "" {
		return l.loadFile()
	}
	return nil, fmt.Errorf("access: no sheet URL or file path configured")
}

func (l *Loader) fetchSheet(ctx context.Context) (*Tables, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.sheetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("access: build sheet request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("access: fetch sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("access: sheet returned %d", resp.StatusCode)
	}

	var tables Tables
	if err := json.NewDecoder(resp.Body).Decode(&tables); err != nil {
		return nil, fmt.Errorf("access: decode sheet: %w", err)
	}
	return &tables, nil
}

func (l *Loader) loadFile() (*Tables, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("access: read %s: %w", l.filePath, err)
	}

	var tables Tables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("access: parse %s: %w", l.filePath, err)
	}
	return &tables, nil
}

package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tobayashi-san/arch-appcenter/logging"
)

// DefaultURL is the hosted catalog document fetched when no override is
// configured.
const DefaultURL = "https://raw.githubusercontent.com/tobayashi-san/arch-appcenter/main/catalog.yaml"

const (
	// cacheMaxAge is how long a cached document is served without
	// contacting the network again.
	cacheMaxAge = 24 * time.Hour

	fetchTimeout = 10 * time.Second
	userAgent    = "arch-appcenter/2.0"

	// maxDocumentBytes bounds how much of a response body is read.
	maxDocumentBytes = 1 << 20
)

//go:embed default.yaml
var defaultDocument []byte

// Store fetches the catalog document over HTTP and keeps a cached copy on
// disk. Resolution order: fresh cache, network, stale cache, embedded
// default.
type Store struct {
	url       string
	cachePath string
	maxAge    time.Duration
	client    *http.Client
	log       logging.Logger

	now func() time.Time
}

// StoreOptions configure a Store. Zero values select DefaultURL, the
// user cache directory, and the 24 hour max age.
type StoreOptions struct {
	URL       string
	CachePath string
	Log       logging.Logger
}

// NewStore builds a catalog store.
func NewStore(opts StoreOptions) *Store {
	s := &Store{
		url:       opts.URL,
		cachePath: opts.CachePath,
		maxAge:    cacheMaxAge,
		client:    &http.Client{Timeout: fetchTimeout},
		log:       opts.Log,
		now:       time.Now,
	}
	if s.url == "" {
		s.url = DefaultURL
	}
	if s.cachePath == "" {
		s.cachePath = DefaultCachePath()
	}
	if s.log == nil {
		s.log = logging.Nop{}
	}
	s.log = logging.WithComponent(s.log, "catalog")
	return s
}

// DefaultCachePath returns the per-user location of the cached catalog.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "arch-appcenter", "catalog.yaml")
}

// Load returns the catalog, downloading it when the cache is missing or
// older than the max age. A failed download falls back to the stale cache,
// then to the embedded default document.
func (s *Store) Load(ctx context.Context) (*Catalog, error) {
	if s.cacheFresh() {
		if cat, err := s.loadCache(); err == nil {
			return cat, nil
		}
		// A corrupt cache is re-fetched below.
	}
	return s.refresh(ctx)
}

// Refresh downloads the catalog unconditionally, bypassing a fresh cache.
func (s *Store) Refresh(ctx context.Context) (*Catalog, error) {
	return s.refresh(ctx)
}

// ResetCache removes the cached document.
func (s *Store) ResetCache() error {
	err := os.Remove(s.cachePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing catalog cache: %w", err)
	}
	return nil
}

func (s *Store) refresh(ctx context.Context) (*Catalog, error) {
	raw, err := s.download(ctx)
	if err == nil {
		cat, perr := Parse(raw, s.log)
		if perr == nil {
			s.writeCache(raw)
			return cat, nil
		}
		err = perr
	}
	s.log.Warn("catalog download failed", map[string]any{"url": s.url, "error": err.Error()})

	if cat, cerr := s.loadCache(); cerr == nil {
		s.log.Info("using cached catalog", map[string]any{"path": s.cachePath})
		return cat, nil
	}

	s.log.Warn("no usable cache, using the built-in catalog", nil)
	return Parse(defaultDocument, s.log)
}

func (s *Store) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalog: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("reading catalog response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("fetching catalog: empty document")
	}
	return data, nil
}

func (s *Store) cacheFresh() bool {
	info, err := os.Stat(s.cachePath)
	if err != nil {
		return false
	}
	return s.now().Sub(info.ModTime()) < s.maxAge
}

func (s *Store) loadCache() (*Catalog, error) {
	raw, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil, err
	}
	return Parse(raw, s.log)
}

// writeCache is best effort: a read-only cache dir only costs the next run
// a download.
func (s *Store) writeCache(raw []byte) {
	if err := os.MkdirAll(filepath.Dir(s.cachePath), 0o755); err != nil {
		s.log.Warn("cannot create cache directory", map[string]any{"error": err.Error()})
		return
	}
	if err := os.WriteFile(s.cachePath, raw, 0o644); err != nil {
		s.log.Warn("cannot write catalog cache", map[string]any{"error": err.Error()})
	}
}

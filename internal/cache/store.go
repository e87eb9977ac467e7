// Package cache persists provider listing payloads keyed by server identity
// and calendar day, so repeated runs within a day avoid redundant server
// calls. Staleness is bounded to the remainder of the current day by design.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FetchFunc retrieves a payload from the provider on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Store is a read-through/write-through cache for listing payloads.
type Store interface {
	// GetOrFetch returns the cached payload for kind on the current day,
	// or calls fetch and persists the result. A corrupt or stale record
	// is treated as a miss, never as an error.
	GetOrFetch(ctx context.Context, kind string, fetch FetchFunc) ([]byte, error)
}

// dayKey returns the calendar-day cache key for t.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DirStore stores one JSON file per (server, kind, day) in a directory.
type DirStore struct {
	dir       string
	serverKey string
	bypass    bool
	logger    *slog.Logger

	// now is the clock used for day keys; replaceable in tests.
	now func() time.Time
}

// Option configures a DirStore.
type Option func(*DirStore)

// WithBypass forces every lookup to fetch from the provider. Fresh results
// are still written back to the cache.
func WithBypass(bypass bool) Option {
	return func(s *DirStore) {
		s.bypass = bypass
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *DirStore) {
		s.logger = logger
	}
}

// WithClock sets the clock used for day keys.
func WithClock(now func() time.Time) Option {
	return func(s *DirStore) {
		s.now = now
	}
}

// NewDirStore creates a directory-backed cache store for one server.
func NewDirStore(dir, serverKey string, opts ...Option) *DirStore {
	s := &DirStore{
		dir:       dir,
		serverKey: serverKey,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// path returns the cache file path for kind on day.
func (s *DirStore) path(kind, day string) string {
	return filepath.Join(s.dir, fmt.Sprintf("cache-%s-%s-%s.json", s.serverKey, kind, day))
}

// GetOrFetch implements Store.
func (s *DirStore) GetOrFetch(ctx context.Context, kind string, fetch FetchFunc) ([]byte, error) {
	day := dayKey(s.now())
	path := s.path(kind, day)

	if !s.bypass {
		if payload, ok := s.read(path); ok {
			s.logger.Debug("cache hit",
				slog.String("kind", kind),
				slog.String("day", day),
			)
			return payload, nil
		}
	}

	payload, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.write(path, payload); err != nil {
		// Failure to persist is not failure to acquire.
		s.logger.Warn("cache write failed",
			slog.String("kind", kind),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	return payload, nil
}

// read returns the payload at path if it exists and is valid JSON.
// Anything else is a miss.
func (s *DirStore) read(path string) ([]byte, bool) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if !json.Valid(payload) {
		s.logger.Warn("discarding corrupt cache record", slog.String("path", path))
		return nil, false
	}
	return payload, true
}

// write persists payload atomically: a record is either fully present and
// valid or absent, never partially written.
func (s *DirStore) write(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into place: %w", err)
	}

	return nil
}

// MemStore is an in-memory Store for tests and ephemeral runs.
type MemStore struct {
	records map[string][]byte
	bypass  bool
	now     func() time.Time
}

// NewMemStore creates an in-memory cache store.
func NewMemStore(bypass bool) *MemStore {
	return &MemStore{
		records: make(map[string][]byte),
		bypass:  bypass,
		now:     time.Now,
	}
}

// GetOrFetch implements Store.
func (m *MemStore) GetOrFetch(ctx context.Context, kind string, fetch FetchFunc) ([]byte, error) {
	key := kind + "@" + dayKey(m.now())

	if !m.bypass {
		if payload, ok := m.records[key]; ok {
			return payload, nil
		}
	}

	payload, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	m.records[key] = payload
	return payload, nil
}

var (
	_ Store = (*DirStore)(nil)
	_ Store = (*MemStore)(nil)
)

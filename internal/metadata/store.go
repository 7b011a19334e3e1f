package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/rarity"
)

const fetchTimeout = 60 * time.Second

// Table is an immutable snapshot of one collection's metadata and rarity.
type Table struct {
	Collection domain.Collection
	Metadata   map[int]domain.TokenMetadata
	Rarity     map[int]domain.RarityRecord
	Generated  bool
	LoadedAt   time.Time
}

// Token returns the metadata of one token.
func (t *Table) Token(id int) (domain.TokenMetadata, bool) {
	m, ok := t.Metadata[id]
	return m, ok
}

// RarityOf returns the rarity record of one token. Collections flagged noRarity have none.
func (t *Table) RarityOf(id int) (domain.RarityRecord, bool) {
	if t.Rarity == nil {
		return domain.RarityRecord{}, false
	}
	r, ok := t.Rarity[id]
	return r, ok
}

// TokenIDs returns the known token ids in ascending order.
func (t *Table) TokenIDs() []int {
	ids := lo.Keys(t.Metadata)
	slices.Sort(ids)
	return ids
}

// Store keeps loaded tables per collection until invalidated.
type Store struct {
	base   string
	client *http.Client

	mu     sync.RWMutex
	tables map[string]*Table
	gens   map[string]uint64
	group  singleflight.Group
}

// NewStore creates a store resolving relative metadata sources against base (a directory or an http(s) URL).
func NewStore(base string) *Store {
	return &Store{
		base:   base,
		client: &http.Client{Timeout: fetchTimeout},
		tables: make(map[string]*Table),
		gens:   make(map[string]uint64),
	}
}

// Get returns an already loaded table.
func (s *Store) Get(address string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[strings.ToLower(address)]
	return t, ok
}

// Load returns the table of col, loading it on first use. Concurrent loads of the same collection share one fetch.
// A failed load is not cached, nor is a load that was invalidated while in flight.
func (s *Store) Load(ctx context.Context, col domain.Collection) (*Table, error) {
	if t, ok := s.Get(col.Address); ok {
		return t, nil
	}

	key := col.Key()
	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.RLock()
		t, ok := s.tables[key]
		gen := s.gens[key]
		s.mu.RUnlock()
		if ok {
			return t, nil
		}

		t, err := s.build(ctx, col)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gens[key] == gen {
			s.tables[key] = t
		} else {
			slog.Debug("discarding metadata invalidated during load", "collection", col.Name)
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// LoadAll warms the store for every collection, logging failures.
func (s *Store) LoadAll(ctx context.Context, cols []domain.Collection) {
	var wg sync.WaitGroup
	for _, col := range cols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, err := s.Load(ctx, col)
			if err != nil {
				slog.Warn("metadata load failed", "collection", col.Name, "error", err)
				return
			}
			slog.Debug("metadata loaded", "collection", col.Name, "tokens", len(t.Metadata), "generated", t.Generated)
		}()
	}
	wg.Wait()
}

// TokenIDs loads col and returns its known token ids.
func (s *Store) TokenIDs(ctx context.Context, col domain.Collection) ([]int, error) {
	t, err := s.Load(ctx, col)
	if err != nil {
		return nil, err
	}
	return t.TokenIDs(), nil
}

// Invalidate drops the metadata and rarity tables of a collection. It reports whether anything was loaded.
// A load already in flight finishes for its callers but is not kept.
func (s *Store) Invalidate(address string) bool {
	key := strings.ToLower(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[key]
	delete(s.tables, key)
	s.gens[key]++
	s.group.Forget(key)
	return ok
}

func (s *Store) build(ctx context.Context, col domain.Collection) (*Table, error) {
	t := &Table{Collection: col, LoadedAt: time.Now()}

	if col.MetadataSourceURI == nil || *col.MetadataSourceURI == "" {
		t.Metadata = generate(col)
		t.Generated = true
		return t, nil
	}

	data, err := s.fetch(ctx, *col.MetadataSourceURI)
	if err != nil {
		return nil, fmt.Errorf("loading metadata of %s: %w", col.Name, err)
	}

	metadata, skipped, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing metadata of %s: %w: %w", col.Name, domain.ErrPartialData, err)
	}
	if skipped > 0 {
		slog.Warn("malformed metadata entries", "collection", col.Name, "skipped", skipped)
	}
	t.Metadata = metadata

	if !col.NoRarity {
		t.Rarity = rarity.Compute(metadata)
	}
	return t, nil
}

func (s *Store) fetch(ctx context.Context, source string) ([]byte, error) {
	location := s.resolve(source)
	if !isHTTP(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", location, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", domain.ErrSourceUnavailable, location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s: status %d", domain.ErrSourceUnavailable, location, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *Store) resolve(source string) string {
	if isHTTP(source) || filepath.IsAbs(source) || s.base == "" {
		return source
	}
	if isHTTP(s.base) {
		joined, err := url.JoinPath(s.base, source)
		if err != nil {
			return source
		}
		return joined
	}
	return filepath.Join(s.base, source)
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

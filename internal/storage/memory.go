package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// MemoryStorage keeps collections in process memory. It follows the same
// contract as SQLiteStorage and is used for tests and throwaway sessions.
type MemoryStorage struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	order       []string
	nextID      int64
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{collections: make(map[string]*memoryCollection)}
}

type memoryRecord struct {
	Record
	seq int
}

type memoryCollection struct {
	store *MemoryStorage
	id    int64
	name  string

	mu        sync.RWMutex
	dimension int
	records   map[string]*memoryRecord
	seq       int
}

func (s *MemoryStorage) CreateOrGetCollection(_ context.Context, name string, metric DistanceMetric) (Collection, error) {
	if metric == "" {
		metric = DistanceCosine
	}
	if metric != DistanceCosine {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
	}
	if name == "" {
		return nil, errors.New("collection name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	s.nextID++
	c := &memoryCollection{
		store:   s,
		id:      s.nextID,
		name:    name,
		records: make(map[string]*memoryRecord),
	}
	s.collections[name] = c
	s.order = append(s.order, name)
	return c, nil
}

func (s *MemoryStorage) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(s.collections, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return nil
}

func (s *MemoryStorage) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func (c *memoryCollection) Name() string {
	return c.name
}

// live reports whether this handle still names the registered collection
func (c *memoryCollection) live() error {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if cur, ok := c.store.collections[c.name]; !ok || cur.id != c.id {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, c.name)
	}
	return nil
}

func (c *memoryCollection) Upsert(ctx context.Context, records []Record) error {
	if err := c.live(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upsertLocked(records)
}

// upsertLocked validates then stores records; callers hold c.mu
func (c *memoryCollection) upsertLocked(records []Record) error {
	dim, err := validateRecords(records, c.dimension)
	if err != nil {
		return err
	}
	c.dimension = dim

	for _, r := range records {
		stored := Record{
			ID:       r.ID,
			Document: r.Document,
			Metadata: copyMetadata(r.Metadata),
			Vector:   slices.Clone(r.Vector),
		}
		if existing, ok := c.records[r.ID]; ok {
			existing.Record = stored
			continue
		}
		c.seq++
		c.records[r.ID] = &memoryRecord{Record: stored, seq: c.seq}
	}
	return nil
}

func (c *memoryCollection) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]QueryResult, error) {
	if err := c.live(); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.dimension == 0 || k <= 0 {
		return []QueryResult{}, nil
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(vector), c.dimension)
	}

	ordered := c.ordered()
	results := make([]QueryResult, 0, len(ordered))
	for _, r := range ordered {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		results = append(results, QueryResult{
			ID:       r.ID,
			Document: r.Document,
			Metadata: copyMetadata(r.Metadata),
			Distance: cosineDistance(vector, r.Vector),
		})
	}
	return rankResults(results, k), nil
}

func (c *memoryCollection) Delete(_ context.Context, filter Filter) (int, error) {
	if err := c.live(); err != nil {
		return 0, err
	}
	if err := validateFilter(filter); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, r := range c.records {
		if matchesFilter(r.Metadata, filter) {
			delete(c.records, id)
			n++
		}
	}
	return n, nil
}

func (c *memoryCollection) Replace(ctx context.Context, stale []Filter, records []Record) (int, error) {
	if err := c.live(); err != nil {
		return 0, err
	}
	for _, f := range stale {
		if err := validateFilter(f); err != nil {
			return 0, err
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := validateRecords(records, c.dimension); err != nil {
		return 0, err
	}

	n := 0
	for id, r := range c.records {
		if slices.ContainsFunc(stale, func(f Filter) bool { return matchesFilter(r.Metadata, f) }) {
			delete(c.records, id)
			n++
		}
	}
	return n, c.upsertLocked(records)
}

func (c *memoryCollection) Count(_ context.Context) (int, error) {
	if err := c.live(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

// ordered returns records in insertion order; callers hold c.mu
func (c *memoryCollection) ordered() []*memoryRecord {
	out := make([]*memoryRecord, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *memoryRecord) int { return a.seq - b.seq })
	return out
}

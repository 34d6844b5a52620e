package vectorstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/embedder"
	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/internal/storage"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

const (
	// DefaultCacheSize is the number of query results kept in memory
	DefaultCacheSize = 256

	// DefaultCacheTTL bounds how long a cached query result is served
	DefaultCacheTTL = 5 * time.Minute
)

// Stats describes the knowledge base
type Stats struct {
	DocumentCount  int    `json:"document_count"`
	CollectionName string `json:"collection_name"`
}

// cacheEntry is a cached query result with its expiration time
type cacheEntry struct {
	snippets  []types.Snippet
	expiresAt time.Time
}

// Store adapts one storage collection to chunk-level operations: chunks are
// embedded on insert, queries are embedded and results converted to snippets
type Store struct {
	storage storage.Storage
	emb     embedder.Embedder
	coll    storage.Collection
	name    string

	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheTTL time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithQueryCache sets the query result cache size and TTL. A size of 0
// disables caching.
func WithQueryCache(size int, ttl time.Duration) Option {
	return func(s *Store) {
		s.cacheTTL = ttl
		if size <= 0 {
			s.cache = nil
			return
		}
		if c, err := lru.New[[32]byte, *cacheEntry](size); err == nil {
			s.cache = c
		}
	}
}

// New opens (creating if needed) the named cosine collection
func New(ctx context.Context, st storage.Storage, emb embedder.Embedder, name string, opts ...Option) (*Store, error) {
	coll, err := st.CreateOrGetCollection(ctx, name, storage.DistanceCosine)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open collection", goerr.V("collection", name))
	}

	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create query cache")
	}

	s := &Store{
		storage:  st,
		emb:      emb,
		coll:     coll,
		name:     name,
		cache:    cache,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	logging.From(ctx).Info("Initialized vector collection", "collection", name)
	return s, nil
}

// Name returns the collection name
func (s *Store) Name() string {
	return s.name
}

// AddDocuments embeds and stores chunks under their "{filename}_{chunk_id}"
// keys. Existing chunks of the same files are removed first so a shorter
// re-ingested document leaves no stale chunks behind.
func (s *Store) AddDocuments(ctx context.Context, chunks []types.Chunk) error {
	logger := logging.From(ctx)
	if len(chunks) == 0 {
		logger.Warn("No documents to add")
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return goerr.Wrap(err, "invalid chunk", goerr.V("index", i), goerr.V("key", c.StorageKey()))
		}
		texts[i] = c.Content
	}

	vectors, err := embedder.EmbedTexts(ctx, s.emb, texts)
	if err != nil {
		return goerr.Wrap(err, "failed to embed chunks", goerr.V("count", len(chunks)))
	}

	var filenames []string
	var stale []storage.Filter
	records := make([]storage.Record, len(chunks))
	for i, c := range chunks {
		records[i] = storage.Record{
			ID:       c.StorageKey(),
			Document: c.Content,
			Metadata: c.Metadata.Map(),
			Vector:   vectors[i],
		}
		if !slices.Contains(filenames, c.Metadata.Filename) {
			filenames = append(filenames, c.Metadata.Filename)
			stale = append(stale, storage.Filter{types.MetaFilename: c.Metadata.Filename})
		}
	}

	// Previous chunks of each file go in the same change as the new ones
	removed, err := s.coll.Replace(ctx, stale, records)
	if err != nil {
		return goerr.Wrap(err, "failed to store chunks",
			goerr.V("count", len(records)), goerr.V("filenames", filenames))
	}
	if removed > 0 {
		logger.Info("Replaced previous chunks", "filenames", filenames, "removed", removed)
	}
	s.InvalidateCache()

	logger.Info("Added documents to vector store", "count", len(chunks))
	return nil
}

// SimilaritySearch returns the k chunks closest to query, most similar first
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]types.Snippet, error) {
	return s.search(ctx, query, nil, k)
}

// SearchWithFilter is SimilaritySearch restricted to chunks whose metadata
// equals every filter value
func (s *Store) SearchWithFilter(ctx context.Context, query string, filter storage.Filter, k int) ([]types.Snippet, error) {
	return s.search(ctx, query, filter, k)
}

func (s *Store) search(ctx context.Context, query string, filter storage.Filter, k int) ([]types.Snippet, error) {
	hash := computeQueryHash(query, filter, k)
	if cached, ok := s.checkCache(hash); ok {
		return cached, nil
	}

	vector, err := embedder.EmbedQuery(ctx, s.emb, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	results, err := s.coll.Query(ctx, vector, k, filter)
	if err != nil {
		return nil, goerr.Wrap(err, "similarity search failed", goerr.V("collection", s.name), goerr.V("k", k))
	}

	snippets := make([]types.Snippet, len(results))
	for i, r := range results {
		snippets[i] = types.Snippet{
			Content:         r.Document,
			Metadata:        types.ChunkMetadataFromMap(r.Metadata),
			SimilarityScore: 1 - r.Distance,
		}
	}

	s.storeInCache(hash, snippets)
	if len(filter) > 0 {
		logging.From(ctx).Info("Found filtered results", "count", len(snippets))
	} else {
		logging.From(ctx).Info("Found similar documents for query", "count", len(snippets))
	}
	return snippets, nil
}

// Count returns the number of stored chunks
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.coll.Count(ctx)
}

// Stats reports the chunk count. On failure the count is 0 and the error is returned.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	n, err := s.coll.Count(ctx)
	if err != nil {
		return Stats{CollectionName: s.name}, goerr.Wrap(err, "failed to count collection", goerr.V("collection", s.name))
	}
	return Stats{DocumentCount: n, CollectionName: s.name}, nil
}

// DeleteCollection removes the collection. The Store is unusable afterwards;
// open a new one with New.
func (s *Store) DeleteCollection(ctx context.Context) error {
	if err := s.storage.DeleteCollection(ctx, s.name); err != nil {
		return goerr.Wrap(err, "failed to delete collection", goerr.V("collection", s.name))
	}
	s.InvalidateCache()
	logging.From(ctx).Info("Deleted collection", "collection", s.name)
	return nil
}

// InvalidateCache drops every cached query result
func (s *Store) InvalidateCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// checkCache returns a copy of a live cached result
func (s *Store) checkCache(hash [32]byte) ([]types.Snippet, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, found := s.cache.Get(hash)
	if !found {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.cache.Remove(hash)
		return nil, false
	}
	return copySnippets(entry.snippets), true
}

func (s *Store) storeInCache(hash [32]byte, snippets []types.Snippet) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	s.cache.Add(hash, &cacheEntry{snippets: copySnippets(snippets), expiresAt: time.Now().Add(s.cacheTTL)})
}

// copySnippets deep copies snippets so cached entries are never shared with callers
func copySnippets(src []types.Snippet) []types.Snippet {
	dst := make([]types.Snippet, len(src))
	for i, s := range src {
		dst[i] = s
		if s.Metadata.PageNumber != nil {
			page := *s.Metadata.PageNumber
			dst[i].Metadata.PageNumber = &page
		}
	}
	return dst
}

// computeQueryHash builds a stable key from the query, filter and k
func computeQueryHash(query string, filter storage.Filter, k int) [32]byte {
	var data strings.Builder
	data.WriteString(query)
	fmt.Fprintf(&data, "|%d", k)

	if len(filter) > 0 {
		keys := make([]string, 0, len(filter))
		for key := range filter {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		data.WriteString("|filters:")
		for _, key := range keys {
			fmt.Fprintf(&data, "%s=%T:%v;", key, filter[key], filter[key])
		}
	}

	return sha256.Sum256([]byte(data.String()))
}

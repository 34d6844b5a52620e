package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/pdfqa-mcp/internal/embedder"
	"github.com/dshills/pdfqa-mcp/internal/storage"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

var benchTopics = []string{
	"solar inverter warranty covers replacement parts",
	"wind turbine gearbox maintenance interval",
	"battery storage thermal runaway protection",
	"grid interconnection permit requirements",
}

// setupBenchStore fills a SQLite-backed store with n chunks
func setupBenchStore(b *testing.B, n int, opts ...Option) *Store {
	b.Helper()
	ctx := context.Background()

	st, err := storage.NewSQLiteStorage(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = st.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	if err != nil {
		b.Fatal(err)
	}

	s, err := New(ctx, st, emb, "bench", opts...)
	if err != nil {
		b.Fatal(err)
	}

	chunks := make([]types.Chunk, n)
	for i := range chunks {
		content := fmt.Sprintf("Section %d: %s, revision %d.", i, benchTopics[i%len(benchTopics)], i/len(benchTopics))
		chunks[i] = chunk(fmt.Sprintf("doc%d.pdf", i%10), i, content)
	}
	if err := s.AddDocuments(ctx, chunks); err != nil {
		b.Fatal(err)
	}
	return s
}

func BenchmarkSimilaritySearch(b *testing.B) {
	s := setupBenchStore(b, 1000, WithQueryCache(0, 0))
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := s.SimilaritySearch(ctx, benchTopics[i%len(benchTopics)], 5); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimilaritySearch_Cached(b *testing.B) {
	s := setupBenchStore(b, 1000, WithQueryCache(DefaultCacheSize, time.Hour))
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := s.SimilaritySearch(ctx, benchTopics[i%len(benchTopics)], 5); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchWithFilter(b *testing.B) {
	s := setupBenchStore(b, 1000, WithQueryCache(0, 0))
	ctx := context.Background()
	filter := storage.Filter{types.MetaFilename: "doc3.pdf"}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := s.SearchWithFilter(ctx, "turbine maintenance", filter, 5); err != nil {
			b.Fatal(err)
		}
	}
}

package embedder

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	a := ComputeHash("m1", "hello world")
	assert.Len(t, a, 64)
	assert.Equal(t, a, ComputeHash("m1", "hello world"))
	assert.NotEqual(t, a, ComputeHash("m2", "hello world"), "model is part of the key")
	assert.NotEqual(t, a, ComputeHash("m1", "hello world!"))
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr error
	}{
		{"valid", []string{"a", "b"}, nil},
		{"empty batch", nil, ErrInvalidInput},
		{"empty text", []string{"a", ""}, ErrInvalidInput},
		{"too large", make([]string, MaxBatchSize+1), ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("k", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

		got, ok := cache.Get("k")
		require.True(t, ok)
		got.Vector[0] = 99

		again, ok := cache.Get("k")
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{})
		cache.Set("b", &Embedding{})
		_, _ = cache.Get("a")
		cache.Set("c", &Embedding{})

		_, okA := cache.Get("a")
		_, okB := cache.Get("b")
		assert.True(t, okA)
		assert.False(t, okB)
		assert.Equal(t, 2, cache.Size())

		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

// countingEmbedder records batch sizes and returns vectors encoding the text index
type countingEmbedder struct {
	LocalProvider
	calls    atomic.Int32
	maxBatch atomic.Int32
}

func (c *countingEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	c.calls.Add(1)
	if n := int32(len(req.Texts)); n > c.maxBatch.Load() {
		c.maxBatch.Store(n)
	}
	resp := &BatchEmbeddingResponse{}
	for _, text := range req.Texts {
		var idx float32
		_, _ = fmt.Sscanf(text, "text-%f", &idx)
		resp.Embeddings = append(resp.Embeddings, &Embedding{Vector: []float32{idx}})
	}
	return resp, nil
}

func TestEmbedTexts(t *testing.T) {
	t.Run("splits into batches and preserves order", func(t *testing.T) {
		texts := make([]string, 2*DefaultBatchSize+7)
		for i := range texts {
			texts[i] = fmt.Sprintf("text-%d", i)
		}

		emb := &countingEmbedder{}
		vectors, err := EmbedTexts(context.Background(), emb, texts)
		require.NoError(t, err)
		require.Len(t, vectors, len(texts))

		for i, v := range vectors {
			assert.Equal(t, float32(i), v[0])
		}
		assert.Equal(t, int32(3), emb.calls.Load())
		assert.LessOrEqual(t, emb.maxBatch.Load(), int32(DefaultBatchSize))
	})

	t.Run("empty input", func(t *testing.T) {
		vectors, err := EmbedTexts(context.Background(), &countingEmbedder{}, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})

	t.Run("propagates batch errors", func(t *testing.T) {
		_, err := EmbedTexts(context.Background(), &countingEmbedder{}, []string{"ok", ""})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(NewCache(100))
	require.NoError(t, err)

	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, LocalDimension, p.Dimension())
	assert.Equal(t, DefaultLocalModel, p.Model())
	require.NoError(t, p.Close())

	t.Run("deterministic unit vectors", func(t *testing.T) {
		a, err := EmbedQuery(ctx, p, "Revenue grew in the third quarter")
		require.NoError(t, err)
		b, err := EmbedQuery(ctx, p, "Revenue grew in the third quarter")
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Len(t, a, LocalDimension)

		var norm float64
		for _, v := range a {
			norm += float64(v * v)
		}
		assert.InDelta(t, 1.0, norm, 1e-5)
	})

	t.Run("shared vocabulary is closer", func(t *testing.T) {
		q, _ := EmbedQuery(ctx, p, "photosynthesis in plant leaves")
		near, _ := EmbedQuery(ctx, p, "Leaves of a plant perform photosynthesis using sunlight.")
		far, _ := EmbedQuery(ctx, p, "The bond market rallied after the central bank decision.")

		assert.Greater(t, dot(q, near), dot(q, far))
	})

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.GenerateEmbedding(cctx, EmbeddingRequest{Text: "uncached text"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"page", "3", "net", "income", "é"}, Tokenize("--- Page 3 ---\nNet-income: é"))
}

func TestNormalizeVector(t *testing.T) {
	assert.Equal(t, []float32{0.6, 0.8}, NormalizeVector([]float32{3, 4}))
	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i] * b[i])
	}
	return s
}

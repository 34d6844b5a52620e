package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

// embeddingServer answers OpenAI-style requests with vectors [len(text), index],
// returning data in reverse order to exercise index matching.
func embeddingServer(t *testing.T, calls *atomic.Int32, inputs *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if inputs != nil {
			*inputs = append(*inputs, req.Input)
		}

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(len(req.Input[i])), float32(i)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
}

func TestHTTPProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("requires api key", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "")
		_, err := NewOpenAIProvider("", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("reads api key from environment", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "env-key")
		p, err := NewJinaProvider("", nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, p.Provider())
		assert.Equal(t, DefaultJinaModel, p.Model())
		assert.Equal(t, JinaDimension, p.Dimension())
	})

	t.Run("batch matches results by index", func(t *testing.T) {
		var calls atomic.Int32
		srv := embeddingServer(t, &calls, nil)
		defer srv.Close()

		p, err := NewOpenAIProvider("test-key", nil, WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
		require.NoError(t, err)

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "bbb", "cc"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		assert.Equal(t, []float32{1, 0}, resp.Embeddings[0].Vector)
		assert.Equal(t, []float32{3, 1}, resp.Embeddings[1].Vector)
		assert.Equal(t, []float32{2, 2}, resp.Embeddings[2].Vector)
		assert.Equal(t, ProviderOpenAI, resp.Provider)
	})

	t.Run("only cache misses reach the api", func(t *testing.T) {
		var calls atomic.Int32
		var inputs [][]string
		srv := embeddingServer(t, &calls, &inputs)
		defer srv.Close()

		p, err := NewOpenAIProvider("test-key", NewCache(10), WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
		require.NoError(t, err)

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached"})
		require.NoError(t, err)

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"cached", "fresh"}})
		require.NoError(t, err)
		assert.Equal(t, float32(6), resp.Embeddings[0].Vector[0])
		assert.Equal(t, float32(5), resp.Embeddings[1].Vector[0])

		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, []string{"fresh"}, inputs[1])
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
		}))
		defer srv.Close()

		p, err := NewOpenAIProvider("test-key", nil, WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
		require.NoError(t, err)

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, emb.Vector)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		p, err := NewOpenAIProvider("test-key", nil, WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
		require.NoError(t, err)

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	emb, err := New(ctx, Config{Provider: "LOCAL", CacheSize: 10})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(ctx, Config{Provider: "openai", APIKey: "k", Model: "text-embedding-3-large", Endpoint: "http://localhost"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", emb.Model())

	_, err = New(ctx, Config{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

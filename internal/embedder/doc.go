// Package embedder generates vector embeddings for document chunks and queries.
//
// Four providers implement the Embedder interface:
//
//   - local: offline signed feature hashing of word tokens (384 dimensions)
//   - openai: OpenAI /v1/embeddings
//   - jina: Jina AI /v1/embeddings (same wire format as OpenAI)
//   - gemini: Gemini API embedding models via google.golang.org/genai
//
// # Basic Usage
//
//	emb, err := embedder.New(ctx, embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := embedder.EmbedTexts(ctx, emb, chunkTexts)
//	query, err := embedder.EmbedQuery(ctx, emb, "what was the revenue?")
//
// EmbedTexts splits arbitrarily long inputs into batches of DefaultBatchSize,
// runs a bounded number of batches concurrently and returns vectors in input
// order.
//
// # Caching
//
// Providers consult an LRU Cache keyed by ComputeHash(model, text) and only send
// cache misses to the remote API. Cached vectors are copied on read so callers
// may modify them freely.
//
// # Error Handling
//
// Remote calls are retried with exponential backoff. Responses with status 429
// or 5xx are retried; other 4xx responses fail immediately. Failures wrap
// ErrProviderFailed:
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // remote API unavailable
//	}
package embedder

package embedder

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/dshills/pdfqa-mcp/internal/retry"
)

// GeminiProvider implements Embedder with the Gemini API embedding models
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
	cache     *Cache
	retry     RetryConfig
}

// NewGeminiProvider creates a Gemini embedder. An empty apiKey falls back to GEMINI_API_KEY.
func NewGeminiProvider(ctx context.Context, apiKey, model string, cache *Cache) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvGeminiAPIKey)
	}
	if apiKey == "" {
		return nil, goerr.Wrap(ErrNoProviderEnabled, "api key not set",
			goerr.V("provider", ProviderGemini), goerr.V("env", EnvGeminiAPIKey))
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	return &GeminiProvider{
		client:    client,
		model:     model,
		dimension: GeminiDimension,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := g.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var contents []*genai.Content
	var missing []int
	for i, text := range req.Texts {
		if g.cache != nil {
			if emb, ok := g.cache.Get(ComputeHash(model, text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, i)
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	if len(missing) > 0 {
		dim := int32(g.dimension)
		resp, err := retry.Do(ctx, g.retry, func() (*genai.EmbedContentResponse, error) {
			return g.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
				OutputDimensionality: &dim,
			})
		})
		if err != nil {
			return nil, goerr.Wrap(ErrProviderFailed, "gemini embed content failed",
				goerr.V("model", model), goerr.V("cause", err.Error()))
		}
		if len(resp.Embeddings) != len(missing) {
			return nil, goerr.Wrap(ErrProviderFailed, "provider returned wrong number of embeddings",
				goerr.V("want", len(missing)), goerr.V("got", len(resp.Embeddings)))
		}

		for j, idx := range missing {
			vector := NormalizeVector(resp.Embeddings[j].Values)
			emb := &Embedding{
				Vector:    vector,
				Dimension: len(vector),
				Provider:  ProviderGemini,
				Model:     model,
				Hash:      ComputeHash(model, req.Texts[idx]),
			}
			if g.cache != nil {
				g.cache.Set(emb.Hash, emb)
			}
			embeddings[idx] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderGemini,
		Model:      model,
	}, nil
}

func (g *GeminiProvider) Dimension() int {
	return g.dimension
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	return nil
}

package embedder

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	Endpoint  string // Optional: override for OpenAI-compatible providers
	CacheSize int
}

// New creates an embedder with explicit configuration
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	var opts []HTTPOption
	if cfg.Endpoint != "" {
		opts = append(opts, WithEndpoint(cfg.Endpoint))
	}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache, opts...)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache, opts...)
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache)
	default:
		return nil, goerr.Wrap(ErrUnsupportedModel, "unknown embedding provider", goerr.V("provider", cfg.Provider))
	}
}

package llm

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/config"
)

// New builds the Client selected by cfg.Provider
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.LLMProviderGroq, config.LLMProviderOpenAI:
		opts := []ChatOption{
			WithTemperature(cfg.Temperature),
			WithMaxRetries(cfg.MaxRetries),
		}
		if cfg.TimeoutSecs > 0 {
			opts = append(opts, WithHTTPClient(StreamingHTTPClient(time.Duration(cfg.TimeoutSecs)*time.Second)))
		}
		return NewChatClient(cfg.BaseURL, cfg.APIKey, cfg.Model, opts...)
	case config.LLMProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	default:
		return nil, goerr.Wrap(ErrUnsupportedProvider, "cannot build llm client", goerr.V("provider", cfg.Provider))
	}
}

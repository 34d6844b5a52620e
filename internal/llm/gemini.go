package llm

import (
	"context"
	"iter"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiClient streams completions from the Gemini API
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient creates a Gemini client for model
func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float64) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(ErrNoAPIKey, "gemini client")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	return &GeminiClient{client: client, model: model, temperature: float32(temperature)}, nil
}

func (g *GeminiClient) Model() string {
	return g.model
}

func (g *GeminiClient) StreamGenerate(ctx context.Context, system, user string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cfg := &genai.GenerateContentConfig{
			Temperature: genai.Ptr(g.temperature),
		}
		if system != "" {
			cfg.SystemInstruction = genai.NewContentFromText(system, "")
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(user), cfg) {
			if err != nil {
				yield("", goerr.Wrap(err, "gemini stream failed", goerr.V("model", g.model)))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/retry"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second
	maxErrorBody   = 4096

	// DefaultHeaderTimeout bounds the wait for response headers. The streamed
	// body is bounded only by the request context.
	DefaultHeaderTimeout = 120 * time.Second
)

// ChatClient streams completions from an OpenAI-compatible chat API. Groq and
// OpenAI both speak this protocol.
type ChatClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	retry       retry.Config
}

// ChatOption configures a ChatClient
type ChatOption func(*ChatClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) ChatOption {
	return func(cc *ChatClient) { cc.httpClient = c }
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) ChatOption {
	return func(cc *ChatClient) { cc.temperature = t }
}

// WithMaxRetries sets how many times a failed request is retried before any
// output has been produced
func WithMaxRetries(n int) ChatOption {
	return func(cc *ChatClient) { cc.retry.MaxRetries = max(n, 0) + 1 }
}

// StreamingHTTPClient returns a client whose timeout covers connecting and
// waiting for headers but not reading a long streamed answer
func StreamingHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// NewChatClient creates a client for baseURL (e.g. "https://api.groq.com/openai/v1")
func NewChatClient(baseURL, apiKey, model string, opts ...ChatOption) (*ChatClient, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(ErrNoAPIKey, "chat client", goerr.V("base_url", baseURL))
	}
	if baseURL == "" {
		return nil, goerr.New("base url is required")
	}
	c := &ChatClient{
		httpClient:  StreamingHTTPClient(DefaultHeaderTimeout),
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: 0.1,
		retry: retry.Config{
			MaxRetries: 3,
			BaseDelay:  initialBackoff,
			MaxDelay:   maxBackoff,
			Multiplier: 2,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *ChatClient) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// APIError is a non-200 response from the chat API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// StreamGenerate posts a streaming chat completion and yields content deltas
func (c *ChatClient) StreamGenerate(ctx context.Context, system, user string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		messages := make([]chatMessage, 0, 2)
		if system != "" {
			messages = append(messages, chatMessage{Role: "system", Content: system})
		}
		messages = append(messages, chatMessage{Role: "user", Content: user})

		body, err := json.Marshal(chatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: c.temperature,
			Stream:      true,
		})
		if err != nil {
			yield("", fmt.Errorf("marshal request: %w", err))
			return
		}

		resp, err := c.open(ctx, body)
		if err != nil {
			yield("", err)
			return
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		for content, err := range readEvents(resp.Body) {
			if !yield(content, err) || err != nil {
				return
			}
		}
	}
}

// open sends the request, retrying transient failures with exponential backoff
func (c *ChatClient) open(ctx context.Context, body []byte) (*http.Response, error) {
	resp, err := retry.Do(ctx, c.retry, func() (*http.Response, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "chat completion failed", goerr.V("max_attempts", c.retry.MaxRetries))
	}
	return resp, nil
}

func (c *ChatClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp, nil
}

// readEvents parses server-sent events until "[DONE]" or EOF
func readEvents(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return
			}

			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", fmt.Errorf("decode stream chunk: %w", err))
				return
			}
			if chunk.Error != nil {
				yield("", fmt.Errorf("%w: %s", ErrStream, chunk.Error.Message))
				return
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("read stream: %w", err))
		}
	}
}

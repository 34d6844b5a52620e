package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dshills/pdfqa-mcp/internal/logging"
)

var (
	// ErrNoAPIKey is returned when a client is built without credentials
	ErrNoAPIKey = errors.New("llm api key is required")
	// ErrUnsupportedProvider is returned for an unknown provider name
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	// ErrStream is returned when the provider reports an error mid-stream
	ErrStream = errors.New("llm stream error")
)

// SystemPrompt instructs the model to answer only from the supplied context
const SystemPrompt = `You are an intelligent PDF Q/A assistant. Your role is to answer questions based on the provided PDF document context.

Guidelines:
1. Answer questions accurately based ONLY on the provided context
2. If the answer is not in the context, clearly state that you don't have enough information
3. Provide detailed, well-structured answers when possible
4. Include relevant quotes from the source material when appropriate
5. If asked about specific pages or sections, reference them in your answer
6. Be concise but comprehensive in your responses
7. If the question is ambiguous, ask for clarification

Remember: Only use information from the provided context. Do not make up information or use external knowledge.`

const userPromptTemplate = `Context from PDF documents:
%s

Question: %s

Please provide a detailed answer based on the context above.`

const summaryPromptTemplate = `Please provide a concise summary of the following text in no more than %d words:

%s

Summary:`

// DefaultSummaryWords is the summary length used when none is given
const DefaultSummaryWords = 200

// SummaryFailed is returned by Summarize in place of a summary on error
const SummaryFailed = "Error generating summary"

// Client streams a completion for a system and user prompt. Fragments arrive
// in order; a non-nil error ends the stream. Breaking out of the range loop
// cancels the underlying request.
type Client interface {
	StreamGenerate(ctx context.Context, system, user string) iter.Seq2[string, error]
	Model() string
}

// Service builds prompts around a Client
type Service struct {
	client Client
}

// NewService wraps client
func NewService(client Client) *Service {
	return &Service{client: client}
}

// Model returns the underlying model name
func (s *Service) Model() string {
	return s.client.Model()
}

// UserPrompt formats the question and retrieved context
func UserPrompt(question, contextText string) string {
	return fmt.Sprintf(userPromptTemplate, contextText, question)
}

// GenerateResponse streams the answer to question given the retrieved
// context. Provider failures end the stream with a single "Error: ..." fragment.
func (s *Service) GenerateResponse(ctx context.Context, question, contextText string) iter.Seq[string] {
	return func(yield func(string) bool) {
		logger := logging.From(ctx)
		logger.Debug("Generating response", "model", s.client.Model(), "context_chars", len(contextText))

		for fragment, err := range s.client.StreamGenerate(ctx, SystemPrompt, UserPrompt(question, contextText)) {
			if err != nil {
				logger.Error("Error generating LLM response", "error", err)
				yield(fmt.Sprintf("Error: %s", err))
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment) {
				return
			}
		}
	}
}

// Summarize asks for a summary of at most maxWords words. Any failure
// returns SummaryFailed.
func (s *Service) Summarize(ctx context.Context, text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultSummaryWords
	}
	prompt := fmt.Sprintf(summaryPromptTemplate, maxWords, text)

	var b strings.Builder
	for fragment, err := range s.client.StreamGenerate(ctx, "", prompt) {
		if err != nil {
			logging.From(ctx).Error("Error generating summary", "error", err)
			return SummaryFailed
		}
		b.WriteString(fragment)
	}
	return strings.TrimSpace(b.String())
}

// unavailable is a Client that fails every request with err
type unavailable struct {
	err error
}

// Unavailable returns a Client whose every stream fails with err. It lets
// commands that never generate text run without LLM credentials.
func Unavailable(err error) Client {
	return unavailable{err: err}
}

func (u unavailable) Model() string { return "unavailable" }

func (u unavailable) StreamGenerate(context.Context, string, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", u.err)
	}
}

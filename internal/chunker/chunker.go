package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dshills/pdfqa-mcp/internal/embedder"
	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

const (
	// DefaultChunkSize is the target maximum chunk length in characters
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the maximum characters carried from one chunk into the next
	DefaultChunkOverlap = 200

	// HybridSemanticThreshold is the text length above which hybrid routes to semantic
	HybridSemanticThreshold = 10000
)

// Strategy splits extracted document text into chunks
type Strategy interface {
	// Chunk returns chunks with ids 0..n-1. Whitespace-only text yields no chunks.
	Chunk(ctx context.Context, text string, meta types.DocumentMetadata) ([]types.Chunk, error)

	// Name returns the strategy tag recorded on produced chunks
	Name() string
}

// Config holds the size parameters shared by the character based strategies
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultConfig returns the standard chunk size and overlap
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = min(DefaultChunkOverlap, c.ChunkSize/5)
	}
	return c
}

// New returns the strategy for kind. Unknown kinds log a warning and fall back
// to recursive. The embedder is only used by semantic and hybrid.
func New(kind string, cfg Config, emb embedder.Embedder) Strategy {
	cfg = cfg.withDefaults()
	switch kind {
	case types.StrategyRecursive:
		return NewRecursive(cfg)
	case types.StrategySemantic:
		return NewSemantic(emb)
	case types.StrategyContextual:
		return NewContextual(cfg)
	case types.StrategyHybrid:
		return NewHybrid(cfg, emb)
	default:
		logging.Default().Warn("Unknown chunking strategy, using recursive", "strategy", kind)
		return NewRecursive(cfg)
	}
}

// Names lists the recognised strategy tags
func Names() []string {
	return []string{types.StrategyRecursive, types.StrategySemantic, types.StrategyContextual, types.StrategyHybrid}
}

// build wraps split texts into chunks with sequential ids
func build(pieces []string, meta types.DocumentMetadata, strategy string) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, types.Chunk{
			Content:  p,
			Metadata: types.NewChunkMetadata(meta, i, runeLen(p), strategy),
		})
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

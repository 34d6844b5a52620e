package chunker

import (
	"context"
	"unicode/utf8"

	"github.com/dshills/pdfqa-mcp/internal/embedder"
	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// Hybrid routes long documents to semantic chunking and short ones to
// recursive. Every chunk it returns is tagged hybrid, including chunks from
// the recursive fallback taken when semantic chunking fails.
type Hybrid struct {
	recursive *Recursive
	semantic  *Semantic
	threshold int
}

// NewHybrid creates the length-routed strategy
func NewHybrid(cfg Config, emb embedder.Embedder) *Hybrid {
	return &Hybrid{
		recursive: NewRecursive(cfg),
		semantic:  NewSemantic(emb),
		threshold: HybridSemanticThreshold,
	}
}

func (h *Hybrid) Name() string {
	return types.StrategyHybrid
}

func (h *Hybrid) Chunk(ctx context.Context, text string, meta types.DocumentMetadata) ([]types.Chunk, error) {
	logger := logging.From(ctx)

	var (
		chunks []types.Chunk
		err    error
	)
	if utf8.RuneCountInString(text) > h.threshold {
		chunks, err = h.semantic.Chunk(ctx, text, meta)
		if err == nil {
			logger.Info("Used semantic chunking for long document", "filename", meta.Filename)
		}
	} else {
		chunks, err = h.recursive.Chunk(ctx, text, meta)
		if err == nil {
			logger.Info("Used recursive chunking for shorter document", "filename", meta.Filename)
		}
	}

	if err != nil {
		logger.Error("Hybrid chunking failed, falling back to recursive", "error", err, "filename", meta.Filename)
		chunks, err = h.recursive.Chunk(ctx, text, meta)
		if err != nil {
			return nil, err
		}
	}

	for i := range chunks {
		chunks[i].Metadata.ChunkingStrategy = types.StrategyHybrid
	}
	return chunks, nil
}

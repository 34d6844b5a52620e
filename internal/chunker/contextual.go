package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// summarySentences is how many ". " separated items make up the document summary
const summarySentences = 3

// Contextual runs the recursive splitter and prefixes every chunk with its
// position, the document name and a short extractive summary
type Contextual struct {
	base *Recursive
}

// NewContextual creates a contextual splitter
func NewContextual(cfg Config) *Contextual {
	return &Contextual{base: NewRecursive(cfg)}
}

func (c *Contextual) Name() string {
	return types.StrategyContextual
}

func (c *Contextual) Chunk(ctx context.Context, text string, meta types.DocumentMetadata) ([]types.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pieces := c.base.SplitText(text)
	if len(pieces) == 0 {
		return []types.Chunk{}, nil
	}

	summary := documentSummary(text, meta)
	chunks := make([]types.Chunk, len(pieces))
	for i, p := range pieces {
		content := contextHeader(summary, i, len(pieces)) + p
		md := types.NewChunkMetadata(meta, i, runeLen(content), types.StrategyContextual)
		md.HasContext = true
		chunks[i] = types.Chunk{Content: content, Metadata: md}
	}

	logging.From(ctx).Debug("Created chunks", "strategy", c.Name(), "count", len(chunks))
	return chunks, nil
}

func documentSummary(text string, meta types.DocumentMetadata) string {
	items := strings.Split(text, ". ")
	if len(items) > summarySentences {
		items = items[:summarySentences]
	}

	filename := meta.Filename
	if filename == "" {
		filename = "Unknown"
	}
	info := "Document: " + filename
	if meta.PageNumber != nil {
		info += fmt.Sprintf(", Page: %d", *meta.PageNumber)
	}
	return info + "\nSummary: " + strings.Join(items, ". ")
}

func contextHeader(summary string, idx, total int) string {
	return fmt.Sprintf("[Context: This is chunk %d of %d from the document]\n%s\n[Chunk Content:]\n",
		idx+1, total, summary)
}

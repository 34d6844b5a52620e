package chunker

import (
	"context"
	"strings"

	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// DefaultSeparators are tried in order; "" splits into characters
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Recursive splits on the coarsest separator present, merges small pieces up
// to the chunk size and recurses into pieces that are still too large
type Recursive struct {
	size       int
	overlap    int
	separators []string
}

// NewRecursive creates a recursive character splitter
func NewRecursive(cfg Config) *Recursive {
	cfg = cfg.withDefaults()
	return &Recursive{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap, separators: DefaultSeparators}
}

func (r *Recursive) Name() string {
	return types.StrategyRecursive
}

func (r *Recursive) Chunk(ctx context.Context, text string, meta types.DocumentMetadata) ([]types.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pieces := r.SplitText(text)
	logging.From(ctx).Debug("Created chunks", "strategy", r.Name(), "count", len(pieces))
	return build(pieces, meta, types.StrategyRecursive), nil
}

// SplitText returns the trimmed, non-empty chunk texts
func (r *Recursive) SplitText(text string) []string {
	if isBlank(text) {
		return []string{}
	}
	return r.split(text, r.separators)
}

func (r *Recursive) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < r.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, r.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, r.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, r.merge(good)...)
	}
	return final
}

// merge greedily packs pieces into chunks of at most size characters, carrying
// a tail of at most overlap characters into the next chunk
func (r *Recursive) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > r.size && len(current) > 0 {
			if doc := joinTrimmed(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > r.overlap || (total+n > r.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := joinTrimmed(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits text on sep, keeping each separator at the start
// of the piece that follows it. Empty pieces are dropped.
func splitKeepSeparator(text, sep string) []string {
	var parts []string
	if sep == "" {
		for _, c := range text {
			parts = append(parts, string(c))
		}
		return parts
	}
	raw := strings.Split(text, sep)
	for i, p := range raw {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func joinTrimmed(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

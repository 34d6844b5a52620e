package chunker

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/embedder"
	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// ErrNoEmbedder is returned when semantic chunking runs without an embedder
var ErrNoEmbedder = errors.New("semantic chunking requires an embedder")

const (
	// BreakpointPercentile selects which distances count as topic shifts
	BreakpointPercentile = 95.0

	// sentenceBuffer is how many neighbouring sentences join each window
	sentenceBuffer = 1
)

// Semantic groups sentences, cutting where the embedding distance between
// neighbouring sentence windows is unusually large
type Semantic struct {
	emb        embedder.Embedder
	percentile float64
}

// NewSemantic creates a semantic splitter backed by emb
func NewSemantic(emb embedder.Embedder) *Semantic {
	return &Semantic{emb: emb, percentile: BreakpointPercentile}
}

func (s *Semantic) Name() string {
	return types.StrategySemantic
}

func (s *Semantic) Chunk(ctx context.Context, text string, meta types.DocumentMetadata) ([]types.Chunk, error) {
	pieces, err := s.SplitText(ctx, text)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Debug("Created chunks", "strategy", s.Name(), "count", len(pieces))
	return build(pieces, meta, types.StrategySemantic), nil
}

// SplitText returns sentence groups joined by single spaces
func (s *Semantic) SplitText(ctx context.Context, text string) ([]string, error) {
	if isBlank(text) {
		return []string{}, nil
	}
	sentences := SplitSentences(text)
	if len(sentences) == 1 {
		return sentences, nil
	}
	if s.emb == nil {
		return nil, ErrNoEmbedder
	}

	vectors, err := embedder.EmbedTexts(ctx, s.emb, bufferedWindows(sentences, sentenceBuffer))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed sentence windows", goerr.V("sentences", len(sentences)))
	}

	distances := make([]float64, len(vectors)-1)
	for i := range distances {
		distances[i] = 1 - cosine(vectors[i], vectors[i+1])
	}
	threshold := Percentile(distances, s.percentile)

	var groups []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			groups = append(groups, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(sentences) {
		groups = append(groups, strings.Join(sentences[start:], " "))
	}
	return groups, nil
}

// SplitSentences splits after '.', '?' or '!' when followed by whitespace.
// The whitespace run between sentences is consumed.
func SplitSentences(text string) []string {
	var (
		sentences []string
		start     int
		prev      rune
	)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && (prev == '.' || prev == '?' || prev == '!') {
			sentences = appendSentence(sentences, text[start:i])
			j := i
			for j < len(text) {
				r2, s2 := utf8.DecodeRuneInString(text[j:])
				if !unicode.IsSpace(r2) {
					break
				}
				j += s2
			}
			start = j
			i = j
			prev = 0
			continue
		}
		prev = r
		i += size
	}
	return appendSentence(sentences, text[start:])
}

func appendSentence(sentences []string, s string) []string {
	if isBlank(s) {
		return sentences
	}
	return append(sentences, s)
}

// bufferedWindows joins each sentence with up to buffer neighbours on each side
func bufferedWindows(sentences []string, buffer int) []string {
	windows := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-buffer)
		hi := min(len(sentences), i+buffer+1)
		windows[i] = strings.Join(sentences[lo:hi], " ")
	}
	return windows
}

// Percentile returns the p-th percentile with linear interpolation between
// closest ranks
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

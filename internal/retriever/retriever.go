package retriever

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// Retrieval strategy tags
const (
	StrategyBasic      = "basic"
	StrategyHybrid     = "hybrid"
	StrategyContextual = "contextual"
)

// ErrEmptyQuery is returned when a query has no terms to score against
var ErrEmptyQuery = errors.New("query has no terms")

// Searcher is the similarity search the strategies run against
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]types.Snippet, error)
}

// Strategy selects the snippets used as answer context for a query
type Strategy interface {
	Retrieve(ctx context.Context, query string, store Searcher) ([]types.Snippet, error)
	Name() string
}

// Options tunes how many candidates are fetched and how they are scored
type Options struct {
	TopK             int     // snippets returned
	CandidateK       int     // hybrid candidate pool
	ExpansionK       int     // contextual results per query variant
	SimilarityWeight float64 // hybrid weight of vector similarity
	KeywordWeight    float64 // hybrid weight of keyword overlap
	MinSimilarity    float64 // drop snippets below this similarity; 0 disables
}

// DefaultOptions returns the standard retrieval parameters
func DefaultOptions() Options {
	return Options{
		TopK:             5,
		CandidateK:       8,
		ExpansionK:       3,
		SimilarityWeight: 0.7,
		KeywordWeight:    0.3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.CandidateK <= 0 {
		o.CandidateK = max(d.CandidateK, o.TopK)
	}
	if o.ExpansionK <= 0 {
		o.ExpansionK = d.ExpansionK
	}
	if o.SimilarityWeight == 0 && o.KeywordWeight == 0 {
		o.SimilarityWeight, o.KeywordWeight = d.SimilarityWeight, d.KeywordWeight
	}
	return o
}

// New returns the strategy for kind. Unknown kinds log a warning and fall
// back to basic.
func New(kind string, opts Options) Strategy {
	opts = opts.withDefaults()
	switch kind {
	case StrategyBasic:
		return &Basic{opts: opts}
	case StrategyHybrid:
		return &Hybrid{opts: opts, fallback: &Basic{opts: opts}}
	case StrategyContextual:
		return &Contextual{opts: opts, fallback: &Basic{opts: opts}}
	default:
		logging.Default().Warn("Unknown retriever strategy, using basic", "strategy", kind)
		return &Basic{opts: opts}
	}
}

// Names lists the recognised strategy tags
func Names() []string {
	return []string{StrategyBasic, StrategyHybrid, StrategyContextual}
}

// Terms returns the set of lowercase whitespace separated terms
func Terms(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// KeywordScore is |Q ∩ C| / |Q| over term sets, 0 when the query has no terms
func KeywordScore(query, content string) float64 {
	return overlap(Terms(query), content)
}

func overlap(queryTerms map[string]struct{}, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	contentTerms := Terms(content)
	hits := 0
	for t := range queryTerms {
		if _, ok := contentTerms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

// sortDesc orders snippets by score, highest first, keeping ties in input order
func sortDesc(snippets []types.Snippet, score func(types.Snippet) float64) {
	slices.SortStableFunc(snippets, func(a, b types.Snippet) int {
		sa, sb := score(a), score(b)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})
}

func dropBelow(snippets []types.Snippet, minSimilarity float64) []types.Snippet {
	if minSimilarity <= 0 {
		return snippets
	}
	return slices.DeleteFunc(snippets, func(s types.Snippet) bool {
		return s.SimilarityScore < minSimilarity
	})
}

func topK(snippets []types.Snippet, k int) []types.Snippet {
	if len(snippets) > k {
		return snippets[:k]
	}
	return snippets
}

package retriever

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// dedupPrefixLen is how many leading characters identify a snippet for dedup
const dedupPrefixLen = 100

var questionWords = []string{"what", "how", "why", "when", "where"}

// Contextual searches several phrasings of the query, merges the results and
// ranks them by term overlap with the original query
type Contextual struct {
	opts     Options
	fallback *Basic
}

func (c *Contextual) Name() string {
	return StrategyContextual
}

func (c *Contextual) Retrieve(ctx context.Context, query string, store Searcher) ([]types.Snippet, error) {
	results, err := c.rank(ctx, query, store)
	if err != nil {
		logging.From(ctx).Error("Error in contextual retrieval, falling back to basic", "error", err)
		return c.fallback.Retrieve(ctx, query, store)
	}
	logging.From(ctx).Info("Contextual retrieval found documents", "count", len(results))
	return results, nil
}

func (c *Contextual) rank(ctx context.Context, query string, store Searcher) ([]types.Snippet, error) {
	var all []types.Snippet
	for _, variant := range QueryVariants(query) {
		results, err := store.SimilaritySearch(ctx, variant, c.opts.ExpansionK)
		if err != nil {
			return nil, goerr.Wrap(err, "similarity search failed", goerr.V("variant", variant))
		}
		all = append(all, results...)
	}

	unique := dropBelow(Dedup(all), c.opts.MinSimilarity)

	queryTerms := Terms(query)
	if len(queryTerms) == 0 {
		return nil, goerr.Wrap(ErrEmptyQuery, "cannot rank results", goerr.V("query", query))
	}
	for i := range unique {
		unique[i].RelevanceScore = overlap(queryTerms, unique[i].Content)
	}

	sortDesc(unique, func(s types.Snippet) float64 { return s.RelevanceScore })
	return topK(unique, c.opts.TopK), nil
}

// QueryVariants returns the query, the query as a question when it lacks a
// trailing "?", and a "what is" phrasing unless it already starts with a
// question word
func QueryVariants(query string) []string {
	variants := []string{query}
	if !strings.HasSuffix(query, "?") {
		variants = append(variants, query+"?")
	}
	lower := strings.ToLower(query)
	asked := false
	for _, w := range questionWords {
		if strings.HasPrefix(lower, w) {
			asked = true
			break
		}
	}
	if !asked {
		variants = append(variants, "what is "+query)
	}
	return variants
}

// Dedup keeps the first snippet for each content prefix. Distinct snippets
// sharing a prefix collapse into one.
func Dedup(snippets []types.Snippet) []types.Snippet {
	seen := make(map[string]struct{}, len(snippets))
	out := make([]types.Snippet, 0, len(snippets))
	for _, s := range snippets {
		key := prefix(s.Content, dedupPrefixLen)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

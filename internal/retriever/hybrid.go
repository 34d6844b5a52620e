package retriever

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// Hybrid re-ranks a wider similarity candidate pool by a weighted mix of
// vector similarity and query term overlap
type Hybrid struct {
	opts     Options
	fallback *Basic
}

func (h *Hybrid) Name() string {
	return StrategyHybrid
}

func (h *Hybrid) Retrieve(ctx context.Context, query string, store Searcher) ([]types.Snippet, error) {
	results, err := h.rank(ctx, query, store)
	if err != nil {
		logging.From(ctx).Error("Error in hybrid retrieval, falling back to basic", "error", err)
		return h.fallback.Retrieve(ctx, query, store)
	}
	logging.From(ctx).Info("Hybrid retrieval found documents", "count", len(results))
	return results, nil
}

func (h *Hybrid) rank(ctx context.Context, query string, store Searcher) ([]types.Snippet, error) {
	candidates, err := store.SimilaritySearch(ctx, query, h.opts.CandidateK)
	if err != nil {
		return nil, goerr.Wrap(err, "similarity search failed", goerr.V("k", h.opts.CandidateK))
	}
	candidates = dropBelow(candidates, h.opts.MinSimilarity)

	queryTerms := Terms(query)
	for i := range candidates {
		keyword := overlap(queryTerms, candidates[i].Content)
		candidates[i].HybridScore = h.opts.SimilarityWeight*candidates[i].SimilarityScore + h.opts.KeywordWeight*keyword
	}

	sortDesc(candidates, func(s types.Snippet) float64 { return s.HybridScore })
	return topK(candidates, h.opts.TopK), nil
}

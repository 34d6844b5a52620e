package retriever

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/dshills/pdfqa-mcp/internal/logging"
	"github.com/dshills/pdfqa-mcp/pkg/types"
)

// Basic returns the TopK most similar snippets
type Basic struct {
	opts Options
}

func (b *Basic) Name() string {
	return StrategyBasic
}

func (b *Basic) Retrieve(ctx context.Context, query string, store Searcher) ([]types.Snippet, error) {
	results, err := store.SimilaritySearch(ctx, query, b.opts.TopK)
	if err != nil {
		return nil, goerr.Wrap(err, "basic retrieval failed")
	}
	results = dropBelow(results, b.opts.MinSimilarity)
	logging.From(ctx).Info("Basic retrieval found documents", "count", len(results))
	return results, nil
}

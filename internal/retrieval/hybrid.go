package retrieval

import (
	"context"
	"fmt"

	"github.com/bull/docgraph/internal/embedding"
	"github.com/bull/docgraph/internal/graph"
)

const fulltextQuery = `
CALL db.index.fulltext.queryNodes($index, $query, {limit: $k})
YIELD node, score
RETURN node.id AS id, node.text AS text, score
ORDER BY score DESC`

// hybridRetriever runs the vector and full-text rankings and fuses them with
// reciprocal rank fusion.
type hybridRetriever struct {
	q             graph.Querier
	provider      *embedding.Provider
	vectorIndex   string
	fulltextIndex string
}

func (r *hybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextRecord, error) {
	vec, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectorRows, err := r.q.Run(ctx, vectorQuery, map[string]any{
		"index":     r.vectorIndex,
		"k":         topK,
		"embedding": embedding.ToFloat64(vec),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	fulltextRows, err := r.q.Run(ctx, fulltextQuery, map[string]any{
		"index": r.fulltextIndex,
		"query": query,
		"k":     topK,
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}

	return fuseRanks(rowsToRecords(vectorRows), rowsToRecords(fulltextRows), topK), nil
}

package retrieval

import (
	"context"
	"fmt"

	"github.com/bull/docgraph/internal/embedding"
	"github.com/bull/docgraph/internal/graph"
)

const vectorTraversalQuery = `
CALL db.index.vector.queryNodes($index, $k, $embedding)
YIELD node, score
OPTIONAL MATCH (node)-[:HAS_ENTITY]->(t:Technology)
RETURN node.id AS id, node.text AS text, score,
       collect(t.name) AS technologies
ORDER BY score DESC`

// vectorTraversalRetriever ranks by vector similarity and enriches each hit
// with the technologies it mentions, one hop out on HAS_ENTITY.
type vectorTraversalRetriever struct {
	q        graph.Querier
	provider *embedding.Provider
	index    string
}

func (r *vectorTraversalRetriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextRecord, error) {
	vec, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := r.q.Run(ctx, vectorTraversalQuery, map[string]any{
		"index":     r.index,
		"k":         topK,
		"embedding": embedding.ToFloat64(vec),
	})
	if err != nil {
		return nil, fmt.Errorf("vector traversal search: %w", err)
	}
	return rowsToRecords(rows), nil
}

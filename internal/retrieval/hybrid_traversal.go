package retrieval

import (
	"context"
	"fmt"

	"github.com/bull/docgraph/internal/graph"
)

const batchTraversalQuery = `
MATCH (c:Chunk)
WHERE c.id IN $ids
OPTIONAL MATCH (c)-[:HAS_ENTITY]->(t:Technology)
RETURN c.id AS id, collect(t.name) AS technologies`

// hybridTraversalRetriever fuses vector and full-text rankings, then runs one
// batched traversal over the fused chunk IDs to attach their technologies.
type hybridTraversalRetriever struct {
	hybrid hybridRetriever
	q      graph.Querier
}

func (r *hybridTraversalRetriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextRecord, error) {
	records, err := r.hybrid.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	rows, err := r.q.Run(ctx, batchTraversalQuery, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("traversal: %w", err)
	}

	techByID := make(map[string]any, len(rows))
	for _, row := range rows {
		id, _ := row["id"].(string)
		techByID[id] = row["technologies"]
	}
	for i := range records {
		tech, ok := techByID[records[i].ID]
		if !ok {
			continue
		}
		if records[i].Extra == nil {
			records[i].Extra = make(map[string]any)
		}
		records[i].Extra["technologies"] = tech
	}
	return records, nil
}

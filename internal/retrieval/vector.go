package retrieval

import (
	"context"
	"fmt"

	"github.com/bull/docgraph/internal/embedding"
	"github.com/bull/docgraph/internal/graph"
)

const vectorQuery = `
CALL db.index.vector.queryNodes($index, $k, $embedding)
YIELD node, score
RETURN node.id AS id, node.text AS text, score
ORDER BY score DESC`

// vectorRetriever embeds the query and ranks chunks by vector similarity.
type vectorRetriever struct {
	q        graph.Querier
	provider *embedding.Provider
	index    string
}

func (r *vectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextRecord, error) {
	vec, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := r.q.Run(ctx, vectorQuery, map[string]any{
		"index":     r.index,
		"k":         topK,
		"embedding": embedding.ToFloat64(vec),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return rowsToRecords(rows), nil
}

// rowsToRecords converts id/text/score rows; any other columns land in Extra.
func rowsToRecords(rows []map[string]any) []ContextRecord {
	records := make([]ContextRecord, 0, len(rows))
	for _, row := range rows {
		rec := ContextRecord{}
		for key, value := range row {
			switch key {
			case "id":
				rec.ID, _ = value.(string)
			case "text":
				rec.Text, _ = value.(string)
			case "score":
				rec.Score, _ = value.(float64)
			default:
				if rec.Extra == nil {
					rec.Extra = make(map[string]any)
				}
				rec.Extra[key] = value
			}
		}
		records = append(records, rec)
	}
	return records
}

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/docgraph/internal/graph"
	"github.com/bull/docgraph/internal/llm"
)

const translationInstruction = `You translate questions into Cypher queries.

Graph schema:
%s

Write a single read-only Cypher query answering the question. Respond with
the query only, no commentary, no code fences.`

// writeClauses disqualify a translated query. The store connection is not
// read-only, so anything mutating is refused here.
var writeClauses = []string{"CREATE", "MERGE", "DELETE", "SET", "REMOVE", "DROP", "DETACH"}

// textToQueryRetriever asks the completion capability to translate the
// question into Cypher and executes the result. Rows come back as-is; there
// is no ranking and topK is not applied.
type textToQueryRetriever struct {
	q      graph.Querier
	client llm.Client
	schema string
	logger *slog.Logger
}

func (r *textToQueryRetriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextRecord, error) {
	messages := []llm.Message{
		llm.SystemMessage(fmt.Sprintf(translationInstruction, r.schema)),
		llm.UserMessage(query),
	}
	reply, err := llm.CompleteWithRetry(ctx, r.client, messages)
	if err != nil {
		r.logger.Warn("Query translation failed", "error", err)
		return nil, nil
	}

	cypher := stripCodeFence(reply)
	if cypher == "" || !isReadOnly(cypher) {
		r.logger.Warn("Refusing translated query", "query", cypher)
		return nil, nil
	}

	rows, err := r.q.Run(ctx, cypher, nil)
	if err != nil {
		r.logger.Warn("Translated query failed", "query", cypher, "error", err)
		return nil, nil
	}
	return rowsToRecords(rows), nil
}

// isReadOnly rejects any query containing a write clause keyword.
func isReadOnly(cypher string) bool {
	upper := strings.ToUpper(cypher)
	for _, clause := range writeClauses {
		for idx := strings.Index(upper, clause); idx >= 0; {
			before := idx == 0 || !isWordByte(upper[idx-1])
			end := idx + len(clause)
			after := end == len(upper) || !isWordByte(upper[end])
			if before && after {
				return false
			}
			next := strings.Index(upper[end:], clause)
			if next < 0 {
				break
			}
			idx = end + next
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// stripCodeFence unwraps a ```cypher ... ``` block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docgraph/internal/embedding"
	"github.com/bull/docgraph/internal/llm"
)

type recordedQuery struct {
	query  string
	params map[string]any
}

// fakeQuerier serves one canned row set per call, in order.
type fakeQuerier struct {
	queries []recordedQuery
	rows    [][]map[string]any
	errs    []error
}

func (f *fakeQuerier) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	i := len(f.queries)
	f.queries = append(f.queries, recordedQuery{query: query, params: params})
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.rows) {
		return f.rows[i], nil
	}
	return nil, nil
}

// fixedClient embeds every text to the same vector and completes with a
// scripted reply.
type fixedClient struct {
	vector []float32
	reply  string
	err    error
}

func (c *fixedClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *fixedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vector
	}
	return out, nil
}

func (c *fixedClient) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return nil, nil
}

func testProvider() *embedding.Provider {
	return embedding.NewProvider(&fixedClient{vector: []float32{0.1, 0.2, 0.3}}, 3)
}

func chunkRow(id string, score float64) map[string]any {
	return map[string]any{"id": id, "text": "text of " + id, "score": score}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"vector", "vector_traversal", "hybrid", "hybrid_traversal", "text2query"} {
		s, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, Strategy(name), s)
	}
	_, err := ParseStrategy("semantic")
	require.Error(t, err)
}

func TestVectorRetrieve(t *testing.T) {
	q := &fakeQuerier{rows: [][]map[string]any{
		{chunkRow("a.txt.0", 0.9), chunkRow("a.txt.1", 0.7)},
	}}
	r, err := New(StrategyVector, q, testProvider(), nil, Options{VectorIndex: "chunkVector"})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "what is Go", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.txt.0", records[0].ID)
	assert.Equal(t, 0.9, records[0].Score)

	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0].query, "db.index.vector.queryNodes")
	assert.Equal(t, "chunkVector", q.queries[0].params["index"])
	assert.Equal(t, 2, q.queries[0].params["k"])
	_, ok := q.queries[0].params["embedding"].([]float64)
	assert.True(t, ok)
}

func TestVectorRetrieveEmptyMatches(t *testing.T) {
	q := &fakeQuerier{}
	r, err := New(StrategyVector, q, testProvider(), nil, Options{VectorIndex: "chunkVector"})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestVectorRetrieveSurfacesStoreError(t *testing.T) {
	q := &fakeQuerier{errs: []error{fmt.Errorf("no such index")}}
	r, err := New(StrategyVector, q, testProvider(), nil, Options{VectorIndex: "missing"})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "anything", 5)
	require.Error(t, err, "a missing index must not be reported as zero matches")
}

func TestVectorTraversalCollectsTechnologies(t *testing.T) {
	row := chunkRow("a.txt.0", 0.9)
	row["technologies"] = []any{"Go", "Neo4j"}
	q := &fakeQuerier{rows: [][]map[string]any{{row}}}
	r, err := New(StrategyVectorTraversal, q, testProvider(), nil, Options{VectorIndex: "chunkVector"})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "what uses Go", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []any{"Go", "Neo4j"}, records[0].Extra["technologies"])
	assert.Contains(t, q.queries[0].query, "HAS_ENTITY")
}

func TestHybridFusesBothRankings(t *testing.T) {
	q := &fakeQuerier{rows: [][]map[string]any{
		{chunkRow("a", 0.9), chunkRow("b", 0.8)}, // vector
		{chunkRow("b", 3.2), chunkRow("c", 1.1)}, // fulltext
	}}
	r, err := New(StrategyHybrid, q, testProvider(), nil,
		Options{VectorIndex: "chunkVector", FulltextIndex: "chunkText"})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "question", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// b appears in both rankings, so it wins.
	assert.Equal(t, "b", records[0].ID)
	require.Len(t, q.queries, 2)
	assert.Contains(t, q.queries[1].query, "db.index.fulltext.queryNodes")
}

func TestHybridTruncatesToTopK(t *testing.T) {
	q := &fakeQuerier{rows: [][]map[string]any{
		{chunkRow("a", 0.9), chunkRow("b", 0.8)},
		{chunkRow("c", 3.2), chunkRow("d", 1.1)},
	}}
	r, err := New(StrategyHybrid, q, testProvider(), nil,
		Options{VectorIndex: "chunkVector", FulltextIndex: "chunkText"})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "question", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestHybridTraversalBatchesFusedIDs(t *testing.T) {
	q := &fakeQuerier{rows: [][]map[string]any{
		{chunkRow("a", 0.9)},
		{chunkRow("b", 2.0)},
		{
			{"id": "a", "technologies": []any{"Go"}},
			{"id": "b", "technologies": []any{}},
		},
	}}
	r, err := New(StrategyHybridTraversal, q, testProvider(), nil,
		Options{VectorIndex: "chunkVector", FulltextIndex: "chunkText"})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "question", 5)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Len(t, q.queries, 3)
	traversal := q.queries[2]
	assert.Contains(t, traversal.query, "WHERE c.id IN $ids")
	ids, ok := traversal.params["ids"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	for _, rec := range records {
		if rec.ID == "a" {
			assert.Equal(t, []any{"Go"}, rec.Extra["technologies"])
		}
	}
}

func TestTextToQueryExecutesTranslation(t *testing.T) {
	client := &fixedClient{reply: "MATCH (t:Technology) RETURN t.name AS name"}
	q := &fakeQuerier{rows: [][]map[string]any{
		{{"name": "Go"}, {"name": "Neo4j"}},
	}}
	r, err := New(StrategyTextToQuery, q, nil, client, Options{Schema: DefaultSchema})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "list technologies", 5)
	require.NoError(t, err)
	require.Len(t, records, 2, "topK does not truncate translated query rows")
	assert.Equal(t, "Go", records[0].Extra["name"])
	assert.True(t, strings.HasPrefix(q.queries[0].query, "MATCH"))
}

func TestTextToQueryStripsFence(t *testing.T) {
	client := &fixedClient{reply: "```cypher\nMATCH (n) RETURN n.name AS name\n```"}
	q := &fakeQuerier{}
	r, err := New(StrategyTextToQuery, q, nil, client, Options{Schema: DefaultSchema})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "question", 5)
	require.NoError(t, err)
	require.Len(t, q.queries, 1)
	assert.Equal(t, "MATCH (n) RETURN n.name AS name", q.queries[0].query)
}

func TestTextToQueryRefusesWrites(t *testing.T) {
	for _, reply := range []string{
		"MATCH (n) DETACH DELETE n",
		"CREATE (n:Chunk {id: 'x'})",
		"MERGE (n:Person {name: 'x'}) RETURN n",
		"MATCH (n) SET n.text = '' RETURN n",
	} {
		client := &fixedClient{reply: reply}
		q := &fakeQuerier{}
		r, err := New(StrategyTextToQuery, q, nil, client, Options{Schema: DefaultSchema})
		require.NoError(t, err)

		records, err := r.Retrieve(context.Background(), "question", 5)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Empty(t, q.queries, "refused query must never reach the store: %s", reply)
	}
}

func TestTextToQueryAllowsOffsetAndReset(t *testing.T) {
	// SET is a write clause but OFFSET and words containing it are not.
	assert.True(t, isReadOnly("MATCH (n) RETURN n SKIP 1 LIMIT 5 // OFFSET"))
	assert.True(t, isReadOnly("MATCH (n {name: 'reset'}) RETURN n.name"))
	assert.False(t, isReadOnly("MATCH (n) SET n.x = 1"))
}

func TestTextToQueryTranslationFailureIsEmpty(t *testing.T) {
	client := &fixedClient{err: fmt.Errorf("%w: garbage", llm.ErrMalformedResponse)}
	q := &fakeQuerier{}
	r, err := New(StrategyTextToQuery, q, nil, client, Options{Schema: DefaultSchema})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "question", 5)
	require.NoError(t, err, "translation failure degrades to empty context")
	assert.Empty(t, records)
}

func TestTextToQueryExecutionFailureIsEmpty(t *testing.T) {
	client := &fixedClient{reply: "MATCH (n:Nope RETURN n"}
	q := &fakeQuerier{errs: []error{fmt.Errorf("syntax error")}}
	r, err := New(StrategyTextToQuery, q, nil, client, Options{Schema: DefaultSchema})
	require.NoError(t, err)

	records, err := r.Retrieve(context.Background(), "question", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

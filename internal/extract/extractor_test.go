package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docgraph/internal/llm"
)

var (
	testNodeTypes = []string{"Technology", "Concept", "Skill", "Event", "Person", "Object"}
	testRelTypes  = []string{"USES", "HAS", "IS", "AT", "KNOWS"}
)

// scriptedClient returns one canned completion per call.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scriptedClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", fmt.Errorf("no scripted reply for call %d", i)
}

func (s *scriptedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *scriptedClient) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return nil, nil
}

func TestExtractParsesConstrainedGraph(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"nodes": [
			{"name": "GPT", "type": "Technology", "description": "A language model"},
			{"name": "OpenAI", "type": "Object", "description": "A research lab"}
		 ],
		 "relationships": [{"source": "GPT", "target": "OpenAI", "type": "AT"}]}`,
	}}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	g, err := e.Extract(context.Background(), "intro.pdf.0", "GPT is a Technology used at OpenAI")
	require.NoError(t, err)
	assert.Equal(t, "intro.pdf.0", g.ChunkID)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "GPT", g.Nodes[0].Name)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "Technology", g.Edges[0].SourceType)
	assert.Equal(t, "Object", g.Edges[0].TargetType)
}

func TestExtractDropsDisallowedTypes(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"nodes": [
			{"name": "GPT", "type": "Technology"},
			{"name": "Mars", "type": "Planet"}
		 ],
		 "relationships": [
			{"source": "GPT", "target": "Mars", "type": "ORBITS"},
			{"source": "GPT", "target": "Mars", "type": "USES"}
		 ]}`,
	}}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	g, err := e.Extract(context.Background(), "c1", "text")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1, "node with type outside allow-list must be dropped")
	// Both edges go: one has a disallowed type, the other a dropped endpoint.
	assert.Empty(t, g.Edges)
}

func TestExtractNormalizesTypeCase(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"nodes": [{"name": "GPT", "type": "technology"}],
		  "relationships": []}`,
	}}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	g, err := e.Extract(context.Background(), "c1", "text")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "Technology", g.Nodes[0].Type)
}

func TestExtractUnwrapsCodeFence(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```json\n{\"nodes\": [{\"name\": \"Go\", \"type\": \"Technology\"}], \"relationships\": []}\n```",
	}}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	g, err := e.Extract(context.Background(), "c1", "text")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
}

func TestExtractRetriesOnceThenEmptyGraph(t *testing.T) {
	client := &scriptedClient{replies: []string{"not json", "still not json"}}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	g, err := e.Extract(context.Background(), "c1", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParseFailure)
	assert.Equal(t, 2, client.calls)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.Equal(t, "c1", g.ChunkID)
}

func TestExtractRecoversOnRetry(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"garbage",
		`{"nodes": [{"name": "GPT", "type": "Technology"}], "relationships": []}`,
	}}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	g, err := e.Extract(context.Background(), "c1", "text")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, 2, client.calls)
}

func TestExtractRetriesUnavailableBackend(t *testing.T) {
	client := &scriptedClient{
		errs: []error{fmt.Errorf("%w: refused", llm.ErrBackendUnavailable)},
		replies: []string{
			"",
			`{"nodes": [{"name": "GPT", "type": "Technology"}], "relationships": []}`,
		},
	}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	g, err := e.Extract(context.Background(), "c1", "text")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, 2, client.calls, "a transiently unavailable backend is retried")
}

func TestExtractStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{errs: []error{
		fmt.Errorf("%w: refused", llm.ErrBackendUnavailable),
		fmt.Errorf("%w: refused", llm.ErrBackendUnavailable),
	}}
	e := NewExtractor(client, testNodeTypes, testRelTypes, nil)

	_, err := e.Extract(ctx, "c1", "text")
	require.Error(t, err)
	assert.LessOrEqual(t, client.calls, 1)
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                   `{"a":1}`,
		"```json\n{\"a\":1}\n```":     `{"a":1}`,
		"```\n{\"a\":1}\n```":         `{"a":1}`,
		"  ```json\n{\"a\":1}\n```  ": `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

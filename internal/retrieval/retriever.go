// Package retrieval answers "which chunks support this question" with five
// interchangeable strategies over the graph store's vector index, full-text
// index, and entity edges.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/docgraph/internal/embedding"
	"github.com/bull/docgraph/internal/graph"
	"github.com/bull/docgraph/internal/llm"
)

// ContextRecord is one retrieved piece of supporting context.
type ContextRecord struct {
	ID    string
	Text  string
	Score float64
	Extra map[string]any
}

// Retriever maps a natural-language query to context records. Zero matches is
// an empty slice with a nil error for every strategy.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]ContextRecord, error)
}

// Strategy names one retrieval approach.
type Strategy string

const (
	StrategyVector          Strategy = "vector"
	StrategyVectorTraversal Strategy = "vector_traversal"
	StrategyHybrid          Strategy = "hybrid"
	StrategyHybridTraversal Strategy = "hybrid_traversal"
	StrategyTextToQuery     Strategy = "text2query"
)

// ParseStrategy validates a strategy name from the CLI.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyVector, StrategyVectorTraversal, StrategyHybrid,
		StrategyHybridTraversal, StrategyTextToQuery:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown retrieval strategy %q", s)
}

// Options carries the index names and graph schema shared by the strategies.
type Options struct {
	VectorIndex   string
	FulltextIndex string
	Schema        string
	Logger        *slog.Logger
}

// DefaultSchema describes the ingested graph for query translation.
const DefaultSchema = `Node labels: Document {id}, Chunk {id, text},
Technology {name, description}, Concept {name, description},
Skill {name, description}, Event {name, description},
Person {name, description}, Object {name, description}.
Relationships: (Chunk)-[:PART_OF]->(Document), (Chunk)-[:HAS_ENTITY]->(entity),
and between entities: USES, HAS, IS, AT, KNOWS.`

// New builds the retriever for strategy. The provider embeds queries for the
// vector-based strategies and client translates questions for text2query.
func New(strategy Strategy, q graph.Querier, provider *embedding.Provider, client llm.Client, opts Options) (Retriever, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch strategy {
	case StrategyVector:
		return &vectorRetriever{q: q, provider: provider, index: opts.VectorIndex}, nil
	case StrategyVectorTraversal:
		return &vectorTraversalRetriever{q: q, provider: provider, index: opts.VectorIndex}, nil
	case StrategyHybrid:
		return &hybridRetriever{
			q: q, provider: provider,
			vectorIndex: opts.VectorIndex, fulltextIndex: opts.FulltextIndex,
		}, nil
	case StrategyHybridTraversal:
		return &hybridTraversalRetriever{
			hybrid: hybridRetriever{
				q: q, provider: provider,
				vectorIndex: opts.VectorIndex, fulltextIndex: opts.FulltextIndex,
			},
			q: q,
		}, nil
	case StrategyTextToQuery:
		return &textToQueryRetriever{
			q: q, client: client, schema: opts.Schema, logger: opts.Logger,
		}, nil
	}
	return nil, fmt.Errorf("unknown retrieval strategy %q", strategy)
}

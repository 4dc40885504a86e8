package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/bull/docgraph/internal/extract"
)

// ChunkRecord is the unit handed to the writer: one chunk plus its owning
// document and embedding.
type ChunkRecord struct {
	Filename  string
	ChunkID   string // "{filename}.{page}"
	Text      string
	Embedding []float32
}

// WriterConfig fixes the index names, vector geometry, and type allow-lists
// for a Writer.
type WriterConfig struct {
	VectorIndex       string
	FulltextIndex     string
	VectorDimension   int
	SimilarityMetric  string // "cosine" or "euclidean"
	NodeTypes         []string
	RelationshipTypes []string
}

// Writer performs idempotent graph writes. Every statement uses MERGE-by-key
// so re-ingesting a document never duplicates nodes or edges, and concurrent
// upserts of the same entity key converge on one node inside the store.
type Writer struct {
	q         Querier
	cfg       WriterConfig
	nodeTypes map[string]struct{}
	relTypes  map[string]struct{}
}

// NewWriter creates a Writer over q.
func NewWriter(q Querier, cfg WriterConfig) *Writer {
	w := &Writer{
		q:         q,
		cfg:       cfg,
		nodeTypes: make(map[string]struct{}, len(cfg.NodeTypes)),
		relTypes:  make(map[string]struct{}, len(cfg.RelationshipTypes)),
	}
	for _, t := range cfg.NodeTypes {
		w.nodeTypes[t] = struct{}{}
	}
	for _, t := range cfg.RelationshipTypes {
		w.relTypes[t] = struct{}{}
	}
	return w
}

const mergeChunkQuery = `
MERGE (d:Document {id: $filename})
MERGE (c:Chunk {id: $chunk_id})
SET c.text = $text
MERGE (c)-[:PART_OF]->(d)
WITH c
CALL db.create.setNodeVectorProperty(c, 'textEmbedding', $embedding)`

// MergeChunk upserts the Document node, the Chunk node with its text and
// embedding, and the PART_OF edge in one statement. After it returns, the
// chunk is durably present, so a failed entity write can be healed by
// re-running ingestion for the same chunk.
func (w *Writer) MergeChunk(ctx context.Context, rec ChunkRecord) error {
	_, err := w.q.Run(ctx, mergeChunkQuery, map[string]any{
		"filename":  rec.Filename,
		"chunk_id":  rec.ChunkID,
		"text":      rec.Text,
		"embedding": toFloat64(rec.Embedding),
	})
	if err != nil {
		return fmt.Errorf("%w: chunk %s: %v", ErrWriteFailed, rec.ChunkID, err)
	}
	return nil
}

// MergeEntities upserts every extracted entity by (label, name), links each
// to the owning chunk with HAS_ENTITY, and upserts every entity-to-entity
// edge by (source, type, target). Labels and relationship types come from
// model output, so they are re-checked against the allow-lists before being
// placed in query text; all values travel as parameters.
func (w *Writer) MergeEntities(ctx context.Context, g extract.Graph) error {
	for _, node := range g.Nodes {
		if _, ok := w.nodeTypes[node.Type]; !ok {
			return fmt.Errorf("%w: node type %q", ErrDisallowedType, node.Type)
		}
		query := fmt.Sprintf(`
MERGE (e:%s {name: $name})
SET e.description = coalesce($description, e.description)
WITH e
MATCH (c:Chunk {id: $chunk_id})
MERGE (c)-[:HAS_ENTITY]->(e)`, node.Type)

		var description any
		if node.Description != "" {
			description = node.Description
		}
		_, err := w.q.Run(ctx, query, map[string]any{
			"name":        node.Name,
			"description": description,
			"chunk_id":    g.ChunkID,
		})
		if err != nil {
			return fmt.Errorf("%w: entity %s:%s: %v", ErrWriteFailed, node.Type, node.Name, err)
		}
	}

	for _, edge := range g.Edges {
		if _, ok := w.relTypes[edge.Type]; !ok {
			return fmt.Errorf("%w: relationship type %q", ErrDisallowedType, edge.Type)
		}
		if _, ok := w.nodeTypes[edge.SourceType]; !ok {
			return fmt.Errorf("%w: node type %q", ErrDisallowedType, edge.SourceType)
		}
		if _, ok := w.nodeTypes[edge.TargetType]; !ok {
			return fmt.Errorf("%w: node type %q", ErrDisallowedType, edge.TargetType)
		}
		query := fmt.Sprintf(`
MATCH (a:%s {name: $source})
MATCH (b:%s {name: $target})
MERGE (a)-[:%s]->(b)`, edge.SourceType, edge.TargetType, edge.Type)

		_, err := w.q.Run(ctx, query, map[string]any{
			"source": edge.Source,
			"target": edge.Target,
		})
		if err != nil {
			return fmt.Errorf("%w: edge %s-%s->%s: %v",
				ErrWriteFailed, edge.Source, edge.Type, edge.Target, err)
		}
	}

	return nil
}

// CreateVectorIndex creates the chunk vector index if it does not exist.
// Index options cannot be parameterized, so the dimension and metric are
// interpolated from validated configuration, never from external input.
func (w *Writer) CreateVectorIndex(ctx context.Context) error {
	metric := strings.ToLower(w.cfg.SimilarityMetric)
	if metric != "cosine" && metric != "euclidean" {
		return fmt.Errorf("unsupported similarity metric %q", w.cfg.SimilarityMetric)
	}
	query := fmt.Sprintf(`
CREATE VECTOR INDEX %s
IF NOT EXISTS
FOR (c:Chunk) ON (c.textEmbedding)
OPTIONS {indexConfig: {
`+"`vector.dimensions`"+`: %d,
`+"`vector.similarity_function`"+`: '%s'
}}`, w.cfg.VectorIndex, w.cfg.VectorDimension, metric)

	if _, err := w.q.Run(ctx, query, nil); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// CreateFullTextIndex creates the chunk full-text index if it does not exist.
func (w *Writer) CreateFullTextIndex(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE FULLTEXT INDEX %s
IF NOT EXISTS
FOR (c:Chunk)
ON EACH [c.text]`, w.cfg.FulltextIndex)

	if _, err := w.q.Run(ctx, query, nil); err != nil {
		return fmt.Errorf("create fulltext index: %w", err)
	}
	return nil
}

// Counts reports the total node and relationship counts. Used to verify the
// idempotence of re-ingestion.
type Counts struct {
	Nodes         int64
	Relationships int64
}

// Count returns the current graph totals.
func (w *Writer) Count(ctx context.Context) (Counts, error) {
	var counts Counts

	rows, err := w.q.Run(ctx, "MATCH (n) RETURN count(n) AS total", nil)
	if err != nil {
		return counts, fmt.Errorf("count nodes: %w", err)
	}
	if len(rows) == 1 {
		counts.Nodes, _ = rows[0]["total"].(int64)
	}

	rows, err = w.q.Run(ctx, "MATCH ()-[r]->() RETURN count(r) AS total", nil)
	if err != nil {
		return counts, fmt.Errorf("count relationships: %w", err)
	}
	if len(rows) == 1 {
		counts.Relationships, _ = rows[0]["total"].(int64)
	}

	return counts, nil
}

// toFloat64 converts the in-memory float32 embedding to the float64 list the
// wire protocol carries.
func toFloat64(f32 []float32) []float64 {
	f64 := make([]float64, len(f32))
	for i, v := range f32 {
		f64[i] = float64(v)
	}
	return f64
}

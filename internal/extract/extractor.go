// Package extract turns chunk text into a constrained candidate graph of
// typed entities and relationships using the model service's completion
// capability.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/docgraph/internal/llm"
)

// ErrParseFailure indicates the model's reply could not be parsed into a
// graph after a retry. Per-chunk and non-fatal: callers log it and use the
// empty graph.
var ErrParseFailure = errors.New("extraction response unparsable")

// Node is a typed entity extracted from chunk text. Identity is (Type, Name)
// across the whole graph; the store merges nodes with the same key.
type Node struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Edge is a directed, typed relationship between two extracted entities.
type Edge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Type       string `json:"type"`
	SourceType string `json:"-"`
	TargetType string `json:"-"`
}

// Graph is the candidate graph for one chunk. ChunkID names the owning
// chunk; the store writer links it to every node with a HAS_ENTITY edge.
type Graph struct {
	ChunkID string
	Nodes   []Node
	Edges   []Edge
}

// Extractor prompts the completion capability with a structured-extraction
// instruction and filters the reply against fixed allow-lists.
type Extractor struct {
	client       llm.Client
	nodeTypes    map[string]string // lowercased -> canonical
	relTypes     map[string]string
	nodeTypeList []string
	relTypeList  []string
	logger       *slog.Logger
}

// NewExtractor creates an Extractor constrained to the given node and
// relationship type allow-lists.
func NewExtractor(client llm.Client, nodeTypes, relTypes []string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		client:       client,
		nodeTypes:    make(map[string]string, len(nodeTypes)),
		relTypes:     make(map[string]string, len(relTypes)),
		nodeTypeList: nodeTypes,
		relTypeList:  relTypes,
		logger:       logger,
	}
	for _, t := range nodeTypes {
		e.nodeTypes[strings.ToLower(t)] = t
	}
	for _, t := range relTypes {
		e.relTypes[strings.ToLower(t)] = t
	}
	return e
}

const extractionInstruction = `You extract knowledge graphs from text.

Allowed node types: %s
Allowed relationship types: %s

Extract the entities and relationships present in the text. Use only the
allowed types. Respond with JSON only, no commentary, in this exact shape:
{"nodes": [{"name": "GPT", "type": "Technology", "description": "..."}],
 "relationships": [{"source": "GPT", "target": "OpenAI", "type": "AT"}]}`

type extractionReply struct {
	Nodes         []Node `json:"nodes"`
	Relationships []Edge `json:"relationships"`
}

// Extract returns the candidate graph for one chunk. A reply that cannot be
// parsed is retried once; a second failure returns an empty graph together
// with ErrParseFailure so the caller can log it and move on. An unavailable
// backend is retried with backoff before giving up.
func (e *Extractor) Extract(ctx context.Context, chunkID, text string) (Graph, error) {
	messages := []llm.Message{
		llm.SystemMessage(fmt.Sprintf(extractionInstruction,
			strings.Join(e.nodeTypeList, ", "),
			strings.Join(e.relTypeList, ", "))),
		llm.UserMessage(text),
	}

	empty := Graph{ChunkID: chunkID}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		reply, err := llm.CompleteWithRetry(ctx, e.client, messages)
		if err != nil {
			if errors.Is(err, llm.ErrMalformedResponse) {
				lastErr = err
				continue
			}
			return empty, err
		}

		var parsed extractionReply
		if err := json.Unmarshal([]byte(stripCodeFence(reply)), &parsed); err != nil {
			lastErr = err
			continue
		}
		return e.filter(chunkID, parsed), nil
	}

	return empty, fmt.Errorf("%w: %v", ErrParseFailure, lastErr)
}

// filter drops nodes and edges whose types are outside the allow-lists and
// edges whose endpoints did not survive, then resolves endpoint labels.
func (e *Extractor) filter(chunkID string, reply extractionReply) Graph {
	g := Graph{ChunkID: chunkID}

	typeByName := make(map[string]string)
	for _, n := range reply.Nodes {
		canonicalType, ok := e.nodeTypes[strings.ToLower(n.Type)]
		if !ok || n.Name == "" {
			e.logger.Debug("Dropping extracted node", "name", n.Name, "type", n.Type)
			continue
		}
		n.Type = canonicalType
		g.Nodes = append(g.Nodes, n)
		typeByName[n.Name] = canonicalType
	}

	for _, edge := range reply.Relationships {
		canonicalType, ok := e.relTypes[strings.ToLower(edge.Type)]
		if !ok {
			e.logger.Debug("Dropping extracted edge", "type", edge.Type)
			continue
		}
		srcType, srcOK := typeByName[edge.Source]
		dstType, dstOK := typeByName[edge.Target]
		if !srcOK || !dstOK {
			e.logger.Debug("Dropping edge with unknown endpoint",
				"source", edge.Source, "target", edge.Target)
			continue
		}
		edge.Type = canonicalType
		edge.SourceType = srcType
		edge.TargetType = dstType
		g.Edges = append(g.Edges, edge)
	}

	return g
}

// stripCodeFence unwraps a ```json ... ``` block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

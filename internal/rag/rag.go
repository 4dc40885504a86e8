// Package rag synthesizes answers from retrieved graph context.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/docgraph/internal/llm"
	"github.com/bull/docgraph/internal/retrieval"
)

// GraphRAG joins a retrieval strategy with the completion capability. The
// strategy is fixed at construction; swap the retriever to swap behavior.
type GraphRAG struct {
	retriever retrieval.Retriever
	client    llm.Client
	logger    *slog.Logger
}

// New creates a GraphRAG over the given retriever and model client.
func New(retriever retrieval.Retriever, client llm.Client, logger *slog.Logger) *GraphRAG {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphRAG{retriever: retriever, client: client, logger: logger}
}

const answerInstruction = `You answer questions using the supporting context
below. If the context does not cover the question, say what is missing rather
than inventing facts.`

// Answer retrieves context for question and asks the model to answer from it.
// Empty retrieval is not an error; the model is told no context was found and
// still produces a reply. A retrieval failure is returned as an error.
func (g *GraphRAG) Answer(ctx context.Context, question string, topK int) (string, error) {
	records, err := g.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	g.logger.Debug("Retrieved context", "records", len(records))

	messages := []llm.Message{
		llm.SystemMessage(answerInstruction),
		llm.UserMessage(buildPrompt(question, records)),
	}
	answer, err := llm.CompleteWithRetry(ctx, g.client, messages)
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return answer, nil
}

func buildPrompt(question string, records []retrieval.ContextRecord) string {
	var b strings.Builder

	if len(records) == 0 {
		b.WriteString("No supporting context was found in the knowledge graph.\n\n")
	} else {
		b.WriteString("Context:\n")
		for _, rec := range records {
			b.WriteString("---\n")
			if rec.Text != "" {
				b.WriteString(rec.Text)
				b.WriteString("\n")
			}
			for key, value := range rec.Extra {
				fmt.Fprintf(&b, "%s: %v\n", key, value)
			}
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

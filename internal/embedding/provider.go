// Package embedding produces fixed-dimension vectors for text via the model
// service adapter.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bull/docgraph/internal/llm"
)

// ErrDimensionMismatch indicates the backend returned a vector whose length
// disagrees with the configured vector index dimension. Fatal to an
// ingestion run; a wrong-dimension vector is never written to the store.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Provider wraps the adapter's embed capability with a stable-dimension
// guarantee and bounded retries on backend unavailability.
type Provider struct {
	client    llm.Client
	dimension int
}

// NewProvider creates a Provider that validates every vector against
// dimension before handing it to callers.
func NewProvider(client llm.Client, dimension int) *Provider {
	return &Provider{client: client, dimension: dimension}
}

// Dimension returns the configured output dimension.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Embed returns the vector for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order. Backend
// unavailability is retried with exponential backoff and a garbled reply gets
// one retry; any other failure is permanent.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	malformedRetried := false
	operation := func() error {
		result, err := p.client.Embed(ctx, texts)
		if err != nil {
			if errors.Is(err, llm.ErrBackendUnavailable) {
				return err // retry with backoff
			}
			if errors.Is(err, llm.ErrMalformedResponse) && !malformedRetried {
				malformedRetried = true
				return err
			}
			return backoff.Permanent(err)
		}
		for i, vec := range result {
			if len(vec) != p.dimension {
				return backoff.Permanent(fmt.Errorf("%w: input %d produced %d dimensions, expected %d",
					ErrDimensionMismatch, i, len(vec), p.dimension))
			}
		}
		vectors = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// ToFloat64 widens a vector for the Bolt protocol, which carries float64
// lists.
func ToFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

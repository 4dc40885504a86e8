package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI adapts any OpenAI-compatible completion/embedding endpoint
// (hosted OpenAI, or a local server exposing the compatible API) to the
// Client contract.
type OpenAI struct {
	client      *openai.Client
	chatModel   string
	embedModel  string
	temperature float64
}

// NewOpenAI creates an adapter for an OpenAI-compatible backend. BaseURL is
// optional; when empty the library default endpoint is used.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts = append(opts, option.WithRequestTimeout(timeout))

	client := openai.NewClient(opts...)
	return &OpenAI{
		client:      &client,
		chatModel:   cfg.ChatModel,
		embedModel:  cfg.EmbedModel,
		temperature: cfg.Temperature,
	}
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    make([]openai.ChatCompletionMessageParamUnion, len(messages)),
		Model:       openai.ChatModel(c.chatModel),
		Temperature: openai.Float(c.temperature),
	}
	for i, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages[i] = openai.SystemMessage(m.Content)
		case RoleAssistant:
			params.Messages[i] = openai.AssistantMessage(m.Content)
		default:
			params.Messages[i] = openai.UserMessage(m.Content)
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed implements Client.
func (c *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d inputs",
			ErrMalformedResponse, len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = toFloat32(data.Embedding)
	}
	return vectors, nil
}

// ListModels implements Client.
func (c *OpenAI) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	models := make([]ModelInfo, len(page.Data))
	for i, m := range page.Data {
		models[i] = ModelInfo{Name: m.ID}
	}
	return models, nil
}

// classify maps library errors onto the adapter's error taxonomy. Server-side
// failures and transport errors count as the backend being unavailable.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 || apiErr.StatusCode == 429 {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Ollama speaks the native Ollama chat protocol (/api/chat, /api/embed,
// /api/tags) and adapts it to the Client contract. The backend is
// chat-session oriented; this adapter translates the role-tagged message
// list into Ollama's chat format and back, preserving role semantics.
type Ollama struct {
	baseURL     string
	chatModel   string
	embedModel  string
	temperature float64
	httpClient  *http.Client
}

// NewOllama creates an adapter for an Ollama server at cfg.BaseURL.
func NewOllama(cfg Config) *Ollama {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ollama{
		baseURL:     cfg.BaseURL,
		chatModel:   cfg.ChatModel,
		embedModel:  cfg.EmbedModel,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message *ollamaChatMessage `json:"message"`
	Done    bool               `json:"done"`
}

// Complete implements Client.
func (o *Ollama) Complete(ctx context.Context, messages []Message) (string, error) {
	req := ollamaChatRequest{
		Model:    o.chatModel,
		Messages: make([]ollamaChatMessage, len(messages)),
		Stream:   false,
		Options:  map[string]any{"temperature": o.temperature},
	}
	for i, m := range messages {
		req.Messages[i] = ollamaChatMessage{Role: string(m.Role), Content: m.Content}
	}

	var resp ollamaChatResponse
	if err := o.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	if resp.Message == nil {
		return "", fmt.Errorf("%w: chat reply missing message", ErrMalformedResponse)
	}
	return resp.Message.Content, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed implements Client. Single and batch requests share the same endpoint;
// Ollama returns one vector per input in input order.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: o.embedModel, Input: texts}
	if err := o.post(ctx, "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d inputs",
			ErrMalformedResponse, len(resp.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = toFloat32(emb)
	}
	return vectors, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels implements Client.
func (o *Ollama) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var resp ollamaTagsResponse
	if err := o.do(httpReq, &resp); err != nil {
		return nil, err
	}
	models := make([]ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = ModelInfo{Name: m.Name}
	}
	return models, nil
}

func (o *Ollama) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return o.do(httpReq, out)
}

func (o *Ollama) do(req *http.Request, out any) error {
	resp, err := o.httpClient.Do(req)
	if err != nil {
		// Connection refused, DNS failure, and client/context timeouts all
		// mean the server cannot be reached right now.
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s returned status %d", ErrBackendUnavailable, req.URL.Path, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s returned status %d", ErrMalformedResponse, req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// toFloat32 converts []float64 to []float32. The wire format is float64 but
// embeddings are stored as float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

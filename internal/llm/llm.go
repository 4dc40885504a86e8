// Package llm normalizes chat-capable model backends behind a single
// capability contract: completion, embedding, and model listing. Every other
// component depends on Client, so swapping the deployed model server only
// requires another implementation of this interface.
package llm

import (
	"context"
	"errors"
	"time"
)

// Role tags a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in an ordered conversation.
type Message struct {
	Role    Role
	Content string
}

// ModelInfo describes a model visible on the backend.
type ModelInfo struct {
	Name string
}

// Client is the backend-agnostic capability contract for a model server.
// Implementations are stateless across calls apart from fixed configuration.
type Client interface {
	// Complete sends the conversation and returns the model's text reply.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ListModels returns metadata for the models the backend serves.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

var (
	// ErrBackendUnavailable indicates the model server could not be reached
	// or did not answer within the configured timeout. Retryable.
	ErrBackendUnavailable = errors.New("model backend unavailable")

	// ErrMalformedResponse indicates the backend replied but the reply could
	// not be parsed into the expected shape.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// Config holds the fixed per-backend configuration. No field is mutated
// after construction.
type Config struct {
	BaseURL     string
	APIKey      string // OpenAI-compatible backends only
	ChatModel   string
	EmbedModel  string
	Temperature float64
	Timeout     time.Duration
}

// DefaultTimeout bounds a single backend round-trip when Config.Timeout is
// unset. Timeouts are reported as ErrBackendUnavailable.
const DefaultTimeout = 60 * time.Second

// SystemMessage is shorthand for a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage is shorthand for a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

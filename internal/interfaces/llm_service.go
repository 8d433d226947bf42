package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// StreamRequest is a provider-agnostic streaming completion request.
type StreamRequest struct {
	// Messages is the full conversation context in chronological order,
	// including the system prompt, history, and the new user message.
	Messages []Message

	// Model selects the completion model. Empty uses the provider default.
	Model string

	// Temperature overrides the configured sampling temperature when > 0.
	Temperature float32

	// MaxTokens caps the completion length when > 0.
	MaxTokens int
}

// LLMService defines the interface for language model operations: embedding
// generation and streamed chat completions. Implementations route to cloud
// providers (Anthropic Claude, Google Gemini) based on the requested model.
type LLMService interface {
	// Embed generates a fixed-dimension embedding vector for the given text.
	// The dimension is invariant for the lifetime of the service. The
	// underlying client is initialized lazily exactly once; concurrent first
	// callers block on the same initialization.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedDimension returns the dimension of vectors produced by Embed.
	EmbedDimension() int

	// ChatStream opens a streaming completion and invokes onDelta for each
	// text fragment in arrival order. It returns once the stream completes
	// or fails; cancelling ctx aborts the stream and releases the
	// underlying connection.
	ChatStream(ctx context.Context, req *StreamRequest, onDelta func(text string)) error

	// HealthCheck verifies the service can reach its provider.
	HealthCheck(ctx context.Context) error

	// Close releases provider clients.
	Close() error
}

package interfaces

import (
	"context"

	"github.com/ternarybob/responsa/internal/models"
)

// ChatRequest is one question against the document collection.
type ChatRequest struct {
	Message   string          `json:"message"`
	SessionID string          `json:"session_id,omitempty"`
	Settings  models.Settings `json:"settings"`
}

// ChatResult is the completed answer for the caller to persist. The caller
// appends both the user message and the assistant message to the session.
type ChatResult struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	Followups []string `json:"followups"`
}

// ChatService answers questions with retrieval-augmented generation,
// emitting the ordered chunk/metadata/error event sequence while streaming.
type ChatService interface {
	// Ask streams the answer through emit and returns the completed result.
	// The event sequence is zero or more chunk events followed by exactly
	// one metadata or error event; after an error event no further events
	// are emitted. On error the returned result is nil.
	Ask(ctx context.Context, req *ChatRequest, emit func(models.StreamEvent)) (*ChatResult, error)

	// HealthCheck verifies the retrieval and generation backends.
	HealthCheck(ctx context.Context) error
}

package models

// Stream event types emitted by the chat core. The transport layer (SSE,
// WebSocket) serializes these as-is; the sequence is zero or more chunk
// events followed by exactly one metadata or error event.
const (
	EventChunk    = "chunk"
	EventMetadata = "metadata"
	EventError    = "error"
)

// StreamEvent is one element of the chat output sequence.
type StreamEvent struct {
	Type      string   `json:"type"`
	Text      string   `json:"text,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	Followups []string `json:"followups,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// StreamMetadata is the terminal payload of a successful generation.
type StreamMetadata struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	Followups []string `json:"followups"`
}

// ChunkEvent builds a chunk event for a text fragment.
func ChunkEvent(text string) StreamEvent {
	return StreamEvent{Type: EventChunk, Text: text}
}

// MetadataEvent builds the terminal metadata event.
func MetadataEvent(meta StreamMetadata) StreamEvent {
	return StreamEvent{
		Type:      EventMetadata,
		Answer:    meta.Answer,
		Sources:   meta.Sources,
		Followups: meta.Followups,
	}
}

// ErrorEvent builds the terminal error event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Type: EventError, Error: err.Error()}
}

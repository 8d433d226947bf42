package models

import "time"

// ChatMessage is one turn in a conversation transcript.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Sources   []string  `json:"sources,omitempty"`
	Followups []string  `json:"followups,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a persisted conversation. The chat core only ever reads the
// last N messages; handlers append new turns after generation completes.
type Session struct {
	ID          string        `json:"id" badgerhold:"key"`
	Title       string        `json:"title"`
	Messages    []ChatMessage `json:"messages"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUpdated time.Time     `json:"last_updated"`
}

// SessionSummary is a transcript-free view of a session for list endpoints.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Summary strips the transcript from a session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		MessageCount: len(s.Messages),
		LastUpdated:  s.LastUpdated,
	}
}

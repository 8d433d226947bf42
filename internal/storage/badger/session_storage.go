package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

// Create stores a new empty session. An empty title defaults to
// "New Chat"; the first user message usually renames it.
func (s *SessionStorage) Create(ctx context.Context, title string) (*models.Session, error) {
	if title == "" {
		title = "New Chat"
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:          common.NewSessionID(),
		Title:       title,
		Messages:    []models.ChatMessage{},
		CreatedAt:   now,
		LastUpdated: now,
	}

	if err := s.db.Store().Insert(session.ID, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Debug().Str("session_id", session.ID).Msg("Session created")
	return session, nil
}

// Get returns the full session including its transcript.
func (s *SessionStorage) Get(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Store().Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// List returns transcript-free summaries, most recently updated first.
func (s *SessionStorage) List(ctx context.Context) ([]models.SessionSummary, error) {
	var sessions []models.Session
	if err := s.db.Store().Find(&sessions, nil); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	summaries := make([]models.SessionSummary, 0, len(sessions))
	for i := range sessions {
		summaries = append(summaries, sessions[i].Summary())
	}
	sort.Slice(summaries, func(a, b int) bool {
		return summaries[a].LastUpdated.After(summaries[b].LastUpdated)
	})
	return summaries, nil
}

// Rename updates the session title.
func (s *SessionStorage) Rename(ctx context.Context, id, title string) error {
	if title == "" {
		return fmt.Errorf("session title cannot be empty")
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	session.Title = title
	session.LastUpdated = time.Now().UTC()
	if err := s.db.Store().Update(id, session); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *SessionStorage) Delete(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Session{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Debug().Str("session_id", id).Msg("Session deleted")
	return nil
}

// AppendMessage appends one turn and bumps LastUpdated.
func (s *SessionStorage) AppendMessage(ctx context.Context, id string, msg models.ChatMessage) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	session.Messages = append(session.Messages, msg)
	session.LastUpdated = time.Now().UTC()

	if err := s.db.Store().Update(id, session); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// History returns the last limit messages in original order. limit <= 0
// returns the full transcript.
func (s *SessionStorage) History(ctx context.Context, id string, limit int) ([]models.ChatMessage, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	messages := session.Messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

package interfaces

import (
	"context"

	"github.com/ternarybob/responsa/internal/models"
)

// SessionStorage persists conversation transcripts. The chat core only
// consumes History; all writes happen at the transport boundary.
type SessionStorage interface {
	Create(ctx context.Context, title string) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]models.SessionSummary, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error

	// AppendMessage appends one turn and bumps LastUpdated.
	AppendMessage(ctx context.Context, id string, msg models.ChatMessage) error

	// History returns the last limit messages in original order.
	// limit <= 0 returns the full transcript.
	History(ctx context.Context, id string, limit int) ([]models.ChatMessage, error)
}

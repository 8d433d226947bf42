package interfaces

import (
	"context"

	"github.com/ternarybob/responsa/internal/models"
)

// IngestService drives chunking, embedding, and index append for new
// documents. Ingestion is all-or-nothing per call: an embedding failure
// partway through commits nothing.
type IngestService interface {
	// Ingest chunks rawText, embeds every chunk, and appends them to the
	// index under sourceName. Input over the configured byte limit is
	// rejected with models.ErrPayloadTooLarge before any work begins.
	Ingest(ctx context.Context, rawText, sourceName string) (*models.IngestResult, error)
}

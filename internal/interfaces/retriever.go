package interfaces

import (
	"context"

	"github.com/ternarybob/responsa/internal/models"
)

// Retriever produces a ranked context set for a query.
type Retriever interface {
	// Retrieve embeds the query, searches the index restricted to
	// activeDocuments (empty means everything), and returns the top-k
	// chunks with their deduplicated source attribution. k <= 0 uses the
	// configured default.
	Retrieve(ctx context.Context, query string, k int, activeDocuments []string) (*models.RetrievedContext, error)
}

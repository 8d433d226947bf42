package interfaces

import "context"

// EmbeddingService generates vector embeddings for ingestion and query time.
type EmbeddingService interface {
	// Generate embedding for raw text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Generate query embedding (may have different preparation than
	// document embedding)
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// Dimension returns the embedding dimension
	Dimension() int

	// Check if the embedding backend is reachable
	IsAvailable(ctx context.Context) bool
}

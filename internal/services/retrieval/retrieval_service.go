package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// Service implements the Retriever contract: embed the query, rank the
// index, and keep only the chunks similar enough to be worth grounding an
// answer on.
type Service struct {
	embeddingService interfaces.EmbeddingService
	index            interfaces.VectorIndex
	minSimilarity    float64
	logger           arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.Retriever = (*Service)(nil)

// NewService creates a retrieval service. minSimilarity is the score floor
// below which a chunk is treated as noise and excluded.
func NewService(
	embeddingService interfaces.EmbeddingService,
	index interfaces.VectorIndex,
	minSimilarity float64,
	logger arbor.ILogger,
) *Service {
	return &Service{
		embeddingService: embeddingService,
		index:            index,
		minSimilarity:    minSimilarity,
		logger:           logger,
	}
}

// Retrieve returns the top-k chunks for query, restricted to
// activeDocuments when non-empty. An empty index or no chunk above the
// similarity floor yields an empty context, not an error; a failed query
// embedding is a retrieval failure because ranking is impossible without
// it.
func (s *Service) Retrieve(ctx context.Context, query string, k int, activeDocuments []string) (*models.RetrievedContext, error) {
	startTime := time.Now()

	queryVector, err := s.embeddingService.GenerateQueryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding failed: %v", models.ErrRetrievalUnavailable, err)
	}

	results := s.index.Search(queryVector, k, activeDocuments)

	retrieved := &models.RetrievedContext{
		Chunks:  make([]models.RetrievedChunk, 0, len(results)),
		Sources: make([]string, 0, len(results)),
	}
	seenSources := make(map[string]bool)

	for _, result := range results {
		if result.Score < s.minSimilarity {
			continue
		}
		retrieved.Chunks = append(retrieved.Chunks, models.RetrievedChunk{
			Text:   result.Chunk.Text,
			Source: result.Chunk.Source,
			Score:  result.Score,
		})
		if !seenSources[result.Chunk.Source] {
			seenSources[result.Chunk.Source] = true
			retrieved.Sources = append(retrieved.Sources, result.Chunk.Source)
		}
		if result.Score > retrieved.BestScore {
			retrieved.BestScore = result.Score
		}
	}

	s.logger.Debug().
		Int("candidates", len(results)).
		Int("kept", len(retrieved.Chunks)).
		Float64("best_score", retrieved.BestScore).
		Dur("duration", time.Since(startTime)).
		Msg("Retrieval completed")

	return retrieved, nil
}

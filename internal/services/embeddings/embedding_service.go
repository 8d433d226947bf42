package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
)

// Service implements EmbeddingService over an LLM provider. Document and
// query embeddings use the same model so their vectors live in one space;
// the two entry points exist so callers state intent and so the task type
// can diverge later without touching call sites.
type Service struct {
	llmService interfaces.LLMService
	logger     arbor.ILogger
}

// NewService creates a new embedding service
func NewService(llmService interfaces.LLMService, logger arbor.ILogger) interfaces.EmbeddingService {
	return &Service{
		llmService: llmService,
		logger:     logger,
	}
}

// GenerateEmbedding creates a vector embedding for document text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	startTime := time.Now()
	embedding, err := s.llmService.Embed(ctx, text)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("text_length", len(text)).
			Msg("Embedding generation failed")
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("dimension", len(embedding)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding generated")

	return embedding, nil
}

// GenerateQueryEmbedding creates a vector embedding for a retrieval query
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return s.GenerateEmbedding(ctx, query)
}

// Dimension returns the embedding dimensionality
func (s *Service) Dimension() int {
	return s.llmService.EmbedDimension()
}

// IsAvailable reports whether the embedding provider answers a probe
func (s *Service) IsAvailable(ctx context.Context) bool {
	if err := s.llmService.HealthCheck(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Embedding service unavailable")
		return false
	}
	return true
}

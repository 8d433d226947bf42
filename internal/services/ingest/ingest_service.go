package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// Service implements the ingestion pipeline: chunk, embed, commit. The
// embed phase buffers everything before the single index write, so a
// failure partway through commits nothing.
type Service struct {
	chunker          Splitter
	embeddingService interfaces.EmbeddingService
	index            interfaces.VectorIndex
	maxDocumentBytes int
	logger           arbor.ILogger
}

// Splitter is the chunking dependency of the pipeline.
type Splitter interface {
	Split(text string) []string
}

// Compile-time interface assertion
var _ interfaces.IngestService = (*Service)(nil)

// NewService creates an ingestion service. maxDocumentBytes caps the raw
// input size; oversized payloads are rejected before any chunking work.
func NewService(
	chunker Splitter,
	embeddingService interfaces.EmbeddingService,
	index interfaces.VectorIndex,
	maxDocumentBytes int,
	logger arbor.ILogger,
) *Service {
	return &Service{
		chunker:          chunker,
		embeddingService: embeddingService,
		index:            index,
		maxDocumentBytes: maxDocumentBytes,
		logger:           logger,
	}
}

// Ingest chunks rawText, embeds every chunk, and commits them to the index
// under sourceName in one write. Re-ingesting an existing source replaces
// its previous chunks. Any embedding failure aborts the whole call with
// nothing committed.
func (s *Service) Ingest(ctx context.Context, rawText, sourceName string) (*models.IngestResult, error) {
	if len(rawText) > s.maxDocumentBytes {
		return nil, fmt.Errorf("%w: document is %d bytes, limit %d", models.ErrPayloadTooLarge, len(rawText), s.maxDocumentBytes)
	}
	if sourceName == "" {
		return nil, fmt.Errorf("source name cannot be empty")
	}

	startTime := time.Now()
	texts := s.chunker.Split(rawText)
	if len(texts) == 0 {
		return nil, fmt.Errorf("document produced no usable chunks")
	}

	s.logger.Info().
		Str("source", sourceName).
		Int("bytes", len(rawText)).
		Int("chunks", len(texts)).
		Msg("Ingesting document")

	now := time.Now().UTC()
	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embedding, err := s.embeddingService.GenerateEmbedding(ctx, text)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("source", sourceName).
				Int("chunk", i).
				Msg("Ingestion aborted, nothing committed")
			return nil, fmt.Errorf("embedding chunk %d of %d failed: %w", i+1, len(texts), err)
		}
		chunks = append(chunks, models.Chunk{
			ID:        common.NewChunkID(),
			Text:      text,
			Source:    sourceName,
			Embedding: embedding,
			CreatedAt: now,
		})
	}

	// Replace any previous chunks for this source in one index write, so
	// re-ingestion neither duplicates content nor loses the prior version
	// when the commit fails.
	if err := s.index.ReplaceSource(ctx, sourceName, chunks); err != nil {
		return nil, fmt.Errorf("failed to commit chunks for %s: %w", sourceName, err)
	}

	s.logger.Info().
		Str("source", sourceName).
		Int("chunks", len(chunks)).
		Dur("duration", time.Since(startTime)).
		Msg("Document ingested")

	return &models.IngestResult{
		Source:     sourceName,
		ChunkCount: len(chunks),
	}, nil
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
	"github.com/ternarybob/responsa/internal/services/generation"
	"github.com/ternarybob/responsa/internal/services/prompt"
)

// Service orchestrates one question through the retrieval pipeline:
// history, retrieve, assemble, stream. It owns the event sequence the
// transports relay and the best-score gate on source attribution.
type Service struct {
	sessionStorage interfaces.SessionStorage
	retriever      interfaces.Retriever
	assembler      *prompt.Assembler
	engine         *generation.Engine
	llmService     interfaces.LLMService

	topK             int
	historyLimit     int
	sourceScoreFloor float64
	logger           arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.ChatService = (*Service)(nil)

// NewService creates the chat orchestrator. sourceScoreFloor is the best
// retrieval score below which sources are withheld even when the model
// claims the context was relevant.
func NewService(
	sessionStorage interfaces.SessionStorage,
	retriever interfaces.Retriever,
	assembler *prompt.Assembler,
	engine *generation.Engine,
	llmService interfaces.LLMService,
	topK int,
	historyLimit int,
	sourceScoreFloor float64,
	logger arbor.ILogger,
) *Service {
	return &Service{
		sessionStorage:   sessionStorage,
		retriever:        retriever,
		assembler:        assembler,
		engine:           engine,
		llmService:       llmService,
		topK:             topK,
		historyLimit:     historyLimit,
		sourceScoreFloor: sourceScoreFloor,
		logger:           logger,
	}
}

// Ask answers one question, streaming events through emit. The sequence is
// zero or more chunk events, then exactly one metadata or error event.
func (s *Service) Ask(ctx context.Context, req *interfaces.ChatRequest, emit func(models.StreamEvent)) (*interfaces.ChatResult, error) {
	query := strings.TrimSpace(req.Message)
	if query == "" {
		err := fmt.Errorf("message cannot be empty")
		emit(models.ErrorEvent(err))
		return nil, err
	}

	startTime := time.Now()

	history, err := s.loadHistory(ctx, req.SessionID)
	if err != nil {
		emit(models.ErrorEvent(err))
		return nil, err
	}

	rctx, err := s.retriever.Retrieve(ctx, query, s.topK, req.Settings.ActiveDocuments)
	if err != nil {
		s.logger.Error().Err(err).Msg("Retrieval failed")
		emit(models.ErrorEvent(err))
		return nil, err
	}

	// Weak retrieval gets no attribution even if the model cites it.
	sources := rctx.Sources
	if rctx.BestScore < s.sourceScoreFloor {
		sources = nil
	}

	messages := s.assembler.Assemble(query, rctx, history, req.Settings)

	meta, err := s.engine.Stream(ctx, messages, req.Settings, sources, generation.Callbacks{
		OnChunk: func(text string) {
			emit(models.ChunkEvent(text))
		},
		OnMetadata: func(meta models.StreamMetadata) {
			emit(models.MetadataEvent(meta))
		},
		OnError: func(err error) {
			emit(models.ErrorEvent(err))
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", req.SessionID).
		Int("context_chunks", len(rctx.Chunks)).
		Int("answer_length", len(meta.Answer)).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completed")

	return &interfaces.ChatResult{
		Answer:    meta.Answer,
		Sources:   meta.Sources,
		Followups: meta.Followups,
	}, nil
}

// HealthCheck verifies the generation backend is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.llmService.HealthCheck(ctx)
}

// loadHistory reads the trailing transcript for the session. A missing
// session ID means a transient conversation with no history.
func (s *Service) loadHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	if sessionID == "" {
		return nil, nil
	}
	history, err := s.sessionStorage.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	return history, nil
}

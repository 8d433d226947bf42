package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// ChatHandler streams retrieval-augmented answers over Server-Sent Events.
// Completed turns are appended to the session transcript here, at the
// transport boundary; the chat core itself never writes sessions.
type ChatHandler struct {
	chatService    interfaces.ChatService
	sessionStorage interfaces.SessionStorage
	logger         arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService interfaces.ChatService,
	sessionStorage interfaces.SessionStorage,
	logger arbor.ILogger,
) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		sessionStorage: sessionStorage,
		logger:         logger,
	}
}

// ChatHandler handles POST /api/chat requests. The response is an SSE
// stream of chunk events followed by exactly one metadata or error event.
func (h *ChatHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode chat request")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Message == "" {
		WriteError(w, http.StatusBadRequest, "Message field is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	h.logger.Info().
		Int("message_length", len(req.Message)).
		Str("session_id", req.SessionID).
		Msg("Processing chat request")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	emit := func(event models.StreamEvent) {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to marshal stream event")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	result, err := h.chatService.Ask(r.Context(), &req, emit)
	if err != nil {
		// The terminal error event already went out on the stream.
		h.logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("Chat request failed")
		return
	}

	if req.SessionID != "" {
		h.persistTurn(r, &req, result)
	}
}

// persistTurn appends the user message and the completed assistant answer
// to the session transcript.
func (h *ChatHandler) persistTurn(r *http.Request, req *interfaces.ChatRequest, result *interfaces.ChatResult) {
	now := time.Now().UTC()

	userMsg := models.ChatMessage{
		Role:      "user",
		Content:   req.Message,
		Timestamp: now,
	}
	if err := h.sessionStorage.AppendMessage(r.Context(), req.SessionID, userMsg); err != nil {
		h.logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("Failed to persist user message")
		return
	}

	assistantMsg := models.ChatMessage{
		Role:      "assistant",
		Content:   result.Answer,
		Sources:   result.Sources,
		Followups: result.Followups,
		Timestamp: now,
	}
	if err := h.sessionStorage.AppendMessage(r.Context(), req.SessionID, assistantMsg); err != nil {
		h.logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("Failed to persist assistant message")
	}
}

// HealthHandler handles GET /api/chat/health requests
func (h *ChatHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if err := h.chatService.HealthCheck(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Chat service health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"healthy": true,
	})
}

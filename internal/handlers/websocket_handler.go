package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler serves the chat stream over a WebSocket connection.
// Each inbound message is one chat request; the stream events for that
// request are written back as JSON frames in order.
type WebSocketHandler struct {
	chatService    interfaces.ChatService
	sessionStorage interfaces.SessionStorage
	logger         arbor.ILogger
}

// NewWebSocketHandler creates a new WebSocket chat handler
func NewWebSocketHandler(
	chatService interfaces.ChatService,
	sessionStorage interfaces.SessionStorage,
	logger arbor.ILogger,
) *WebSocketHandler {
	return &WebSocketHandler{
		chatService:    chatService,
		sessionStorage: sessionStorage,
		logger:         logger,
	}
}

// HandleWebSocket handles the /ws route. Requests are processed one at a
// time per connection; event frames for a request are never interleaved
// with frames from another request.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("WebSocket client connected")

	var writeMu sync.Mutex
	writeEvent := func(event models.StreamEvent) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to write WebSocket frame")
		}
	}

	for {
		var req interfaces.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if req.Message == "" {
			writeEvent(models.StreamEvent{Type: models.EventError, Error: "message is required"})
			continue
		}

		result, err := h.chatService.Ask(r.Context(), &req, writeEvent)
		if err != nil {
			// The terminal error event already went out on the stream.
			h.logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("WebSocket chat request failed")
			continue
		}

		if req.SessionID != "" {
			h.persistTurn(r, &req, result)
		}
	}
}

func (h *WebSocketHandler) persistTurn(r *http.Request, req *interfaces.ChatRequest, result *interfaces.ChatResult) {
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

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// SessionHandler exposes conversation CRUD over /api/sessions.
type SessionHandler struct {
	sessionStorage interfaces.SessionStorage
	logger         arbor.ILogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionStorage interfaces.SessionStorage, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessionStorage: sessionStorage,
		logger:         logger,
	}
}

// CollectionHandler handles /api/sessions: GET lists summaries, POST
// creates a session.
func (h *SessionHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler handles /api/sessions/{id}: GET returns the transcript, PUT
// renames, DELETE removes.
func (h *SessionHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	escaped := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	id, err := url.PathUnescape(escaped)
	if err != nil || id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "session id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.rename(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sessionStorage.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sessions")
		WriteError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": summaries,
	})
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	// An empty or malformed body creates an untitled session.
	_ = json.NewDecoder(r.Body).Decode(&req)

	session, err := h.sessionStorage.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create session")
		WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.logger.Info().Str("session_id", session.ID).Msg("Session created")
	WriteJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.sessionStorage.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
		WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	WriteJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) rename(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		WriteError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := h.sessionStorage.Rename(r.Context(), id, req.Title); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("session_id", id).Msg("Failed to rename session")
		WriteError(w, http.StatusInternalServerError, "failed to rename session")
		return
	}

	WriteSuccess(w, "session renamed")
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.sessionStorage.Delete(r.Context(), id); err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("Failed to delete session")
		WriteError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	WriteSuccess(w, "session deleted")
}

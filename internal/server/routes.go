package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws/chat", s.app.WSHandler.HandleWebSocket)

	// API routes - Chat (RAG-enabled chat, SSE streaming)
	mux.HandleFunc("/api/chat", s.app.ChatHandler.ChatHandler)
	mux.HandleFunc("/api/chat/health", s.app.ChatHandler.HealthHandler)

	// API routes - Documents
	mux.HandleFunc("/api/documents/upload", s.app.DocumentHandler.UploadHandler)
	mux.HandleFunc("/api/documents/url", s.app.DocumentHandler.URLHandler)
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.ListHandler)
	mux.HandleFunc("/api/documents/", s.app.DocumentHandler.DeleteHandler) // DELETE /{source}

	// API routes - Sessions
	mux.HandleFunc("/api/sessions", s.app.SessionHandler.CollectionHandler) // GET (list), POST (create)
	mux.HandleFunc("/api/sessions/", s.app.SessionHandler.ItemHandler)      // GET/PUT/DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

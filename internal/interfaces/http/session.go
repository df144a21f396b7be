package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"finsync/internal/infrastructure/cache"
	"finsync/internal/models"
	"finsync/internal/shared/middleware"
)

// SessionHandler exposes the live browser session URL for OTP entry.
type SessionHandler struct {
	connections models.ConnectionRepository
	cache       cache.Port
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(connections models.ConnectionRepository, c cache.Port) *SessionHandler {
	return &SessionHandler{connections: connections, cache: c}
}

type sessionResponse struct {
	LiveURL string `json:"liveUrl"`
}

// HandleGetSession returns the live URL of an in-flight browser sync for the
// given connection. The connection must belong to the caller; a foreign or
// unknown ID is indistinguishable from no connection at all. 404 when no
// session is currently published.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connectionID := r.PathValue("id")
	if connectionID == "" {
		http.Error(w, "Connection ID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.connections.GetByID(r.Context(), userID, connectionID); err != nil {
		if errors.Is(err, models.ErrConnectionNotFound) {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		log.Printf("Error loading connection %s: %v", connectionID, err)
		http.Error(w, "Failed to read session", http.StatusInternalServerError)
		return
	}

	liveURL, err := h.cache.Get(r.Context(), cache.SessionURLKey(connectionID))
	if errors.Is(err, cache.ErrNotFound) {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error reading session URL for connection %s: %v", connectionID, err)
		http.Error(w, "Failed to read session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{LiveURL: liveURL})
}

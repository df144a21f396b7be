package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"finsync/internal/infrastructure/crypto"
	"finsync/internal/models"
	"finsync/internal/provider"
	"finsync/internal/provider/token"
	"finsync/internal/shared/middleware"
	syncengine "finsync/internal/sync"
)

// TokenExchanger exchanges a short-lived public token for a durable access
// token. Implemented by the token provider's client.
type TokenExchanger interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (*token.ExchangeResult, error)
}

// LinkHandler exchanges public tokens and creates connections.
type LinkHandler struct {
	exchanger   TokenExchanger
	encryptor   *crypto.Encryptor
	connections models.ConnectionRepository
	orch        *syncengine.Orchestrator
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(exchanger TokenExchanger, encryptor *crypto.Encryptor, connections models.ConnectionRepository, orch *syncengine.Orchestrator) *LinkHandler {
	return &LinkHandler{
		exchanger:   exchanger,
		encryptor:   encryptor,
		connections: connections,
		orch:        orch,
	}
}

type exchangeRequest struct {
	PublicToken string `json:"publicToken"`
	Institution string `json:"institution"`
}

type exchangeResponse struct {
	ConnectionID    string               `json:"connectionId"`
	InstitutionName string               `json:"institutionName"`
	Results         []*models.SyncResult `json:"results"`
}

// HandleExchange exchanges the public token, stores the connection with its
// encrypted access token, and runs the initial sync. Re-linking the same
// institution item refreshes the stored credential instead of duplicating
// the connection.
func (h *LinkHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PublicToken == "" {
		http.Error(w, "publicToken is required", http.StatusBadRequest)
		return
	}

	exchange, err := h.exchanger.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) && perr.Kind == provider.AuthExpired {
			http.Error(w, "Public token rejected", http.StatusUnauthorized)
			return
		}
		log.Printf("User %s: token exchange failed: %v", userID, err)
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	encrypted, err := h.encryptor.Encrypt(exchange.AccessToken)
	if err != nil {
		log.Printf("User %s: failed to encrypt credential: %v", userID, err)
		http.Error(w, "Failed to store credential", http.StatusInternalServerError)
		return
	}

	institution := exchange.InstitutionName
	if institution == "" {
		institution = req.Institution
	}

	conn, err := h.connections.FindOrCreate(r.Context(), &models.Connection{
		UserID:              userID,
		Provider:            models.ProviderToken,
		EncryptedCredential: encrypted,
		ExternalItemID:      exchange.ItemID,
		InstitutionName:     institution,
	})
	if err != nil {
		log.Printf("User %s: failed to store connection: %v", userID, err)
		http.Error(w, "Failed to store connection", http.StatusInternalServerError)
		return
	}

	results, err := h.orch.BootstrapConnection(r.Context(), conn)
	if err != nil {
		// The connection is stored; the sweep will retry the pull later.
		log.Printf("User %s: initial sync of connection %s failed: %v", userID, conn.ID, err)
		results = nil
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(exchangeResponse{
		ConnectionID:    conn.ID,
		InstitutionName: conn.InstitutionName,
		Results:         results,
	})
}

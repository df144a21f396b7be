package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"finsync/internal/models"
	"finsync/internal/shared/middleware"
	syncengine "finsync/internal/sync"
)

// SyncHandler triggers manual syncs for the authenticated user.
type SyncHandler struct {
	orch *syncengine.Orchestrator
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(orch *syncengine.Orchestrator) *SyncHandler {
	return &SyncHandler{orch: orch}
}

type syncRequest struct {
	AccountID string `json:"accountId"`
}

type syncResponse struct {
	Success bool                 `json:"success"`
	Synced  int                  `json:"synced"`
	Errors  int                  `json:"errors"`
	Results []*models.SyncResult `json:"results"`
}

// HandleSync syncs one account when the body names one, or every account of
// the caller otherwise. Provider failures come back as per-account results
// with HTTP 200; only an unusable request or an unloadable account fails the
// call itself.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	var results []*models.SyncResult
	if req.AccountID != "" {
		result, err := h.orch.SyncAccount(r.Context(), userID, req.AccountID)
		if err != nil {
			if errors.Is(err, models.ErrAccountNotFound) || errors.Is(err, models.ErrConnectionNotFound) {
				http.Error(w, "Account not found", http.StatusNotFound)
				return
			}
			log.Printf("Error syncing account %s for user %s: %v", req.AccountID, userID, err)
			http.Error(w, "Failed to sync account", http.StatusInternalServerError)
			return
		}
		results = []*models.SyncResult{result}
	} else {
		var err error
		results, err = h.orch.SyncAllAccounts(r.Context(), userID)
		if err != nil {
			log.Printf("Error syncing accounts for user %s: %v", userID, err)
			http.Error(w, "Failed to sync accounts", http.StatusInternalServerError)
			return
		}
	}

	resp := syncResponse{Results: results}
	for _, result := range results {
		if result.Success {
			resp.Synced++
		} else {
			resp.Errors++
		}
	}
	resp.Success = resp.Errors == 0

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

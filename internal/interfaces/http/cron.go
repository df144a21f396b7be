package http

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"finsync/internal/models"
	syncengine "finsync/internal/sync"
)

// CronHandler runs the staleness sweep for the external cron scheduler.
type CronHandler struct {
	sweep  *syncengine.Sweep
	secret string
}

// NewCronHandler creates a new cron handler. secret may be empty; the
// endpoint then refuses every request until the operator configures one.
func NewCronHandler(sweep *syncengine.Sweep, secret string) *CronHandler {
	return &CronHandler{sweep: sweep, secret: secret}
}

type cronSweepResponse struct {
	Success             bool                     `json:"success"`
	Duration            string                   `json:"duration"`
	TotalAccountsSynced int                      `json:"totalAccountsSynced"`
	TotalErrors         int                      `json:"totalErrors"`
	UsersProcessed      int                      `json:"usersProcessed"`
	Details             []models.SweepUserDetail `json:"details"`
}

// HandleSweep validates the shared secret and runs one sweep pass.
func (h *CronHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret == "" {
		log.Printf("Cron sweep rejected: CRON_SECRET is not configured")
		http.Error(w, "Cron secret not configured", http.StatusInternalServerError)
		return
	}

	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == token || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.sweep.Run(r.Context())
	if err != nil {
		log.Printf("Cron sweep failed: %v", err)
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cronSweepResponse{
		Success:             true,
		Duration:            summary.DurationString,
		TotalAccountsSynced: summary.TotalSynced,
		TotalErrors:         summary.TotalErrors,
		UsersProcessed:      summary.UsersProcessed,
		Details:             summary.Details,
	})
}

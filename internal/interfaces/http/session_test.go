package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finsync/internal/infrastructure/cache"
	"finsync/internal/models"
)

func TestHandleGetSession(t *testing.T) {
	c := NewMockCache()
	c.Set(context.Background(), cache.SessionURLKey("conn-1"), "https://live.example.com/s/abc", time.Minute)
	c.Set(context.Background(), cache.SessionURLKey("conn-other"), "https://live.example.com/s/xyz", time.Minute)

	// conn-1 belongs to user-1, conn-other to user-2; lookups are scoped to
	// the caller, so a foreign ID resolves to not-found.
	owners := map[string]string{"conn-1": "user-1", "conn-2": "user-1", "conn-other": "user-2"}
	connections := &MockConnectionRepo{
		GetByIDFunc: func(ctx context.Context, userID, id string) (*models.Connection, error) {
			if owners[id] != userID {
				return nil, models.ErrConnectionNotFound
			}
			return &models.Connection{ID: id, UserID: userID}, nil
		},
	}

	handler := NewSessionHandler(connections, c)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/connections/{id}/session", handler.HandleGetSession)

	tests := []struct {
		name           string
		connectionID   string
		userID         string
		expectedStatus int
		expectedURL    string
	}{
		{"ActiveSession", "conn-1", "user-1", http.StatusOK, "https://live.example.com/s/abc"},
		{"NoSession", "conn-2", "user-1", http.StatusNotFound, ""},
		{"ForeignConnectionIs404", "conn-other", "user-1", http.StatusNotFound, ""},
		{"Unauthenticated", "conn-1", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodGet, "/api/connections/"+tt.connectionID+"/session", "", tt.userID)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.expectedURL == "" {
				if rr.Body.Len() > 0 && tt.name == "ForeignConnectionIs404" {
					var resp sessionResponse
					if json.Unmarshal(rr.Body.Bytes(), &resp) == nil && resp.LiveURL != "" {
						t.Errorf("foreign session URL leaked: %q", resp.LiveURL)
					}
				}
				return
			}

			var resp sessionResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("invalid response: %v", err)
			}
			if resp.LiveURL != tt.expectedURL {
				t.Errorf("liveUrl = %q, want %q", resp.LiveURL, tt.expectedURL)
			}
		})
	}
}

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Operational endpoints
	mux.HandleFunc("/health", httphandlers.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	// External cron scheduler (shared-secret auth inside the handler)
	mux.HandleFunc("POST /api/cron/sweep", deps.CronHandler.HandleSweep)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("POST /api/sync", authMiddleware(http.HandlerFunc(deps.SyncHandler.HandleSync)))
	mux.Handle("POST /api/connections/exchange", authMiddleware(http.HandlerFunc(deps.LinkHandler.HandleExchange)))
	mux.Handle("GET /api/connections/{id}/session", authMiddleware(http.HandlerFunc(deps.SessionHandler.HandleGetSession)))

	return middleware.Tracing(middleware.Logging(mux))
}

package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"finsync/internal/scheduler"
)

// StartServer creates and starts the HTTP server.
func StartServer(addr string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // manual syncs can legitimately run long
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	return srv
}

// GracefulShutdown stops the server and scheduler, bounded by timeout.
func GracefulShutdown(srv *http.Server, sched *scheduler.Scheduler, timeout time.Duration) {
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if sched != nil {
		sched.Shutdown(timeout)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	log.Println("Server stopped")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finsync/internal/scheduler"
	"finsync/internal/shared/config"
	"finsync/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  os.Getenv("ENVIRONMENT"),
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Printf("Telemetry shutdown error: %v", err)
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// In-process scheduler (deployments with an external cron hit
	// /api/cron/sweep instead and disable this)
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(deps.Sweep, scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
		})
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		log.Println("Scheduler is disabled")
	}

	handler := SetupRoutes(deps)
	srv := StartServer(cfg.Server.Host+":"+cfg.Server.Port, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, sched, 30*time.Second)
	return nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	fs "cloud.google.com/go/firestore"

	"finsync/internal/browser"
	"finsync/internal/infrastructure/cache"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/firestore"
	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/models"
	"finsync/internal/provider"
	"finsync/internal/provider/browserprov"
	"finsync/internal/provider/token"
	"finsync/internal/shared/auth"
	"finsync/internal/shared/config"
	syncengine "finsync/internal/sync"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Firestore *fs.Client
	Cache     cache.Port

	// Handlers
	SyncHandler    *httphandlers.SyncHandler
	CronHandler    *httphandlers.CronHandler
	LinkHandler    *httphandlers.LinkHandler
	SessionHandler *httphandlers.SessionHandler

	// Auth
	JWT *auth.JWT

	// Sweep (for the in-process scheduler)
	Sweep *syncengine.Sweep
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
	if err != nil {
		return nil, err
	}
	log.Println("Connected to Firestore")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key, cfg.Encryption.Salt)
	if err != nil {
		return nil, err
	}

	// Repositories
	userRepo := firestore.NewUserRepository(client)
	connectionRepo := firestore.NewConnectionRepository(client)
	accountRepo := firestore.NewAccountRepository(client)
	transactionRepo := firestore.NewTransactionRepository(client)
	syncWriter := firestore.NewSyncWriter(client)

	// Cache: Redis when configured, in-process memory otherwise.
	cachePort := newCache(cfg)
	log.Printf("Cache backend: %s", cachePort.Name())

	// Browser sessions + provider adapters
	manager := browser.NewManager(browser.Config{
		Mode:            browser.Mode(cfg.Browser.Mode),
		RemoteURL:       cfg.Browser.RemoteURL,
		ExecPath:        cfg.Browser.ExecPath,
		LiveURLTemplate: cfg.Browser.LiveURLTemplate,
	})

	tokenClient := token.NewClient(cfg.Provider.TokenAPIBaseURL)

	liveURLs := func(connectionID, liveURL string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cachePort.Set(ctx, cache.SessionURLKey(connectionID), liveURL, 10*time.Minute); err != nil {
			log.Printf("Failed to publish live URL for connection %s: %v", connectionID, err)
		}
	}

	progress := func(p provider.Progress) {
		log.Printf("Connection %s: %s", p.ConnectionID, p.Stage)
	}

	factory := func(conn *models.Connection) (provider.Adapter, func(), error) {
		switch conn.Provider {
		case models.ProviderToken:
			adapter := token.NewAdapter(tokenClient, "aggregator", progress)
			return adapter, func() {}, nil
		case models.ProviderBrowser:
			adapter := browserprov.NewAdapter(manager, siteFor(conn), progress, liveURLs)
			return adapter, adapter.Close, nil
		default:
			return nil, nil, fmt.Errorf("unknown provider kind %q", conn.Provider)
		}
	}

	orchestrator := syncengine.NewOrchestrator(
		accountRepo, connectionRepo, transactionRepo, syncWriter,
		encryptor, factory,
		syncengine.Config{
			SyncWindowDays:  cfg.Sync.WindowDays,
			ProviderTimeout: cfg.Sync.ProviderTimeout,
		},
	)

	sweep := syncengine.NewSweep(userRepo, accountRepo, orchestrator, cachePort, syncengine.SweepConfig{
		StaleThreshold: cfg.Sweep.StaleThreshold,
		Budget:         cfg.Sweep.Budget,
	})

	jwt := auth.NewJWT(cfg.JWT.Secret)

	return &Dependencies{
		Firestore:      client,
		Cache:          cachePort,
		SyncHandler:    httphandlers.NewSyncHandler(orchestrator),
		CronHandler:    httphandlers.NewCronHandler(sweep, cfg.Cron.Secret),
		LinkHandler:    httphandlers.NewLinkHandler(tokenClient, encryptor, connectionRepo, orchestrator),
		SessionHandler: httphandlers.NewSessionHandler(connectionRepo, cachePort),
		JWT:            jwt,
		Sweep:          sweep,
	}, nil
}

func newCache(cfg *config.Config) cache.Port {
	if cfg.Redis.Addr != "" {
		redis, err := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password)
		if err == nil {
			return redis
		}
		log.Printf("Redis unavailable, falling back to memory cache: %v", err)
	}
	return cache.NewMemory(time.Minute)
}

// siteFor returns the scripted flow for a browser connection's institution.
// One institution is wired today; adding another is a matter of extending
// this table.
func siteFor(conn *models.Connection) browserprov.Site {
	return browserprov.Site{
		Name:                    "israel",
		LoginURL:                "https://online.bank.example.il/login",
		UsernameSelector:        `#username`,
		PasswordSelector:        `#password`,
		SubmitSelector:          `button[type="submit"]`,
		LoggedInSelector:        `#account-overview`,
		AccountsURL:             "https://online.bank.example.il/accounts",
		AccountsScript:          `JSON.stringify(window.__accounts__)`,
		TransactionsURLTemplate: "https://online.bank.example.il/accounts/%s/statement?from=%s&to=%s",
		TransactionsScript:      `JSON.stringify(window.__statement__)`,
		Currency:                "ILS",
	}
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Firestore != nil {
		d.Firestore.Close()
	}
}

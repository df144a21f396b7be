package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Firestore  FirestoreConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Cron       CronConfig
	Redis      RedisConfig
	Browser    BrowserConfig
	Provider   ProviderConfig
	Sync       SyncConfig
	Sweep      SweepConfig
	Scheduler  SchedulerConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
}

type JWTConfig struct {
	Secret string
}

type EncryptionConfig struct {
	Key  string
	Salt string
}

// CronConfig carries the shared secret the sweep endpoint expects. An empty
// secret is tolerated at load time; the endpoint itself refuses to run
// without one.
type CronConfig struct {
	Secret string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type BrowserConfig struct {
	Mode            string
	RemoteURL       string
	ExecPath        string
	LiveURLTemplate string
}

type ProviderConfig struct {
	TokenAPIBaseURL string
}

type SyncConfig struct {
	WindowDays      int
	ProviderTimeout time.Duration
}

type SweepConfig struct {
	StaleThreshold time.Duration
	Budget         time.Duration
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	RunOnStartup  bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

func Load() (*Config, error) {

	syncWindowDays, err := strconv.Atoi(getEnv("SYNC_WINDOW_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_WINDOW_DAYS: %w", err)
	}
	providerTimeout, err := time.ParseDuration(getEnv("SYNC_PROVIDER_TIMEOUT", "12m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_PROVIDER_TIMEOUT: %w", err)
	}

	staleThreshold, err := time.ParseDuration(getEnv("SWEEP_STALE_THRESHOLD", "6h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_STALE_THRESHOLD: %w", err)
	}
	sweepBudget, err := time.ParseDuration(getEnv("SWEEP_BUDGET", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_BUDGET: %w", err)
	}

	schedulerEnabled := getBoolEnv("SCHEDULER_ENABLED", true)
	schedulerTimes := strings.Split(getEnv("SCHEDULER_TIMES", "05:00,11:00,17:00,23:00"), ",")
	schedulerRunOnStartup := getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false)

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Firestore: FirestoreConfig{
			ProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Encryption: EncryptionConfig{
			Key:  getEnv("ENCRYPTION_KEY", ""),
			Salt: getEnv("ENCRYPTION_SALT", "finsync-credential-vault"),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Browser: BrowserConfig{
			Mode:            getEnv("BROWSER_MODE", "containerized"),
			RemoteURL:       getEnv("BROWSER_REMOTE_URL", ""),
			ExecPath:        getEnv("BROWSER_EXEC_PATH", "/usr/bin/chromium"),
			LiveURLTemplate: getEnv("BROWSER_LIVE_URL_TEMPLATE", ""),
		},
		Provider: ProviderConfig{
			TokenAPIBaseURL: getEnv("TOKEN_API_BASE_URL", ""),
		},
		Sync: SyncConfig{
			WindowDays:      syncWindowDays,
			ProviderTimeout: providerTimeout,
		},
		Sweep: SweepConfig{
			StaleThreshold: staleThreshold,
			Budget:         sweepBudget,
		},
		Scheduler: SchedulerConfig{
			Enabled:       schedulerEnabled,
			ScheduleTimes: schedulerTimes,
			RunOnStartup:  schedulerRunOnStartup,
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "finsync-api"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		},
	}

	// Validate required fields
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) < 16 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be at least 16 bytes")
	}

	switch cfg.Browser.Mode {
	case "local", "containerized":
	case "remotecloud":
		if cfg.Browser.RemoteURL == "" {
			return nil, fmt.Errorf("BROWSER_REMOTE_URL is required when BROWSER_MODE=remotecloud")
		}
	default:
		return nil, fmt.Errorf("invalid BROWSER_MODE %q (local, remotecloud, containerized)", cfg.Browser.Mode)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

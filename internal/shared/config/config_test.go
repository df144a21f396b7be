package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-jwt-secret-key")
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901") // 32 bytes
}

func TestLoad_Success(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.JWT.Secret != "test-jwt-secret-key" {
		t.Errorf("JWT.Secret = %q, want %q", cfg.JWT.Secret, "test-jwt-secret-key")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Sync.WindowDays != 90 {
		t.Errorf("Sync.WindowDays = %d, want 90", cfg.Sync.WindowDays)
	}
	if cfg.Sweep.StaleThreshold != 6*time.Hour {
		t.Errorf("Sweep.StaleThreshold = %v, want 6h", cfg.Sweep.StaleThreshold)
	}
	if cfg.Browser.Mode != "containerized" {
		t.Errorf("Browser.Mode = %q, want containerized", cfg.Browser.Mode)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901")
	os.Unsetenv("JWT_SECRET")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing JWT_SECRET, got nil")
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("ENCRYPTION_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing ENCRYPTION_KEY, got nil")
	}
}

func TestLoad_ShortEncryptionKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENCRYPTION_KEY", "too-short")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for short ENCRYPTION_KEY, got nil")
	}
}

func TestLoad_MissingCronSecretIsTolerated(t *testing.T) {
	setRequiredEnvVars(t)
	os.Unsetenv("CRON_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Cron.Secret != "" {
		t.Errorf("Cron.Secret = %q, want empty", cfg.Cron.Secret)
	}
}

func TestLoad_InvalidSyncWindow(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SYNC_WINDOW_DAYS", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid SYNC_WINDOW_DAYS, got nil")
	}
}

func TestLoad_InvalidSweepBudget(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SWEEP_BUDGET", "five minutes")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid SWEEP_BUDGET, got nil")
	}
}

func TestLoad_BrowserModeValidation(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		remoteURL string
		wantErr   bool
	}{
		{"Local", "local", "", false},
		{"Containerized", "containerized", "", false},
		{"RemoteCloudWithURL", "remotecloud", "wss://browsers.example.com/session", false},
		{"RemoteCloudMissingURL", "remotecloud", "", true},
		{"Unknown", "headful", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv("BROWSER_MODE", tt.mode)
			if tt.remoteURL == "" {
				os.Unsetenv("BROWSER_REMOTE_URL")
			} else {
				t.Setenv("BROWSER_REMOTE_URL", tt.remoteURL)
			}

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_SchedulerConfig(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_TIMES", "03:00,15:00")
	t.Setenv("SCHEDULER_RUN_ON_STARTUP", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Scheduler.Enabled != false {
		t.Error("Scheduler.Enabled should be false")
	}
	if len(cfg.Scheduler.ScheduleTimes) != 2 {
		t.Errorf("ScheduleTimes length = %d, want 2", len(cfg.Scheduler.ScheduleTimes))
	}
	if cfg.Scheduler.RunOnStartup != true {
		t.Error("Scheduler.RunOnStartup should be true")
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value    string
		defVal   bool
		expected bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"invalid", true, true},   // returns default
		{"invalid", false, false}, // returns default
		{"", true, true},          // empty returns default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			key := "TEST_BOOL_ENV"
			if tt.value == "" {
				os.Unsetenv(key)
			} else {
				t.Setenv(key, tt.value)
			}

			got := getBoolEnv(key, tt.defVal)
			if got != tt.expected {
				t.Errorf("getBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defVal, got, tt.expected)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LISTEN_ADDR", "DATABASE_DRIVER", "TOKEN_TTL", "SCHEDULE_RETENTION_LIMIT", "TIMEZONE", configFileEnv} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != "goalpath.db" {
		t.Fatalf("unexpected database config: %s %s", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected token ttl: %v", cfg.TokenTTL)
	}
	if cfg.RetentionLimit != 7 {
		t.Fatalf("expected retention limit 7, got %d", cfg.RetentionLimit)
	}
	if cfg.ReminderCron != "0 9 * * *" {
		t.Fatalf("unexpected reminder cron: %q", cfg.ReminderCron)
	}
	if cfg.Location != time.Local {
		t.Fatalf("expected local time zone, got %v", cfg.Location)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("SCHEDULE_RETENTION_LIMIT", "10")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("DATABASE_DRIVER", "MySQL")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Fatalf("unexpected token ttl: %v", cfg.TokenTTL)
	}
	if cfg.RetentionLimit != 10 {
		t.Fatalf("unexpected retention limit: %d", cfg.RetentionLimit)
	}
	if cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.DatabaseDriver != "mysql" {
		t.Fatalf("unexpected driver: %s", cfg.DatabaseDriver)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	t.Setenv("SCHEDULE_RETENTION_LIMIT", "-3")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	cfg := Load()

	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("expected fallback ttl, got %v", cfg.TokenTTL)
	}
	if cfg.RetentionLimit != 7 {
		t.Fatalf("expected fallback retention limit, got %d", cfg.RetentionLimit)
	}
	if cfg.Location != time.Local {
		t.Fatalf("expected local fallback, got %v", cfg.Location)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goalpath.yaml")
	content := "REMINDER_CRON: \"*/30 * * * *\"\nREMINDER_CONCURRENCY: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(configFileEnv, path)

	cfg := Load()

	if cfg.ReminderCron != "*/30 * * * *" {
		t.Fatalf("unexpected reminder cron: %q", cfg.ReminderCron)
	}
	if cfg.ReminderConcurrency != 3 {
		t.Fatalf("unexpected concurrency: %d", cfg.ReminderConcurrency)
	}
}

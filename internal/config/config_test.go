package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DRIVERLOG_BACKEND",
		"DRIVERLOG_API_URL",
		"DRIVERLOG_TZ",
		"DRIVERLOG_AUTOCLOSE_INTERVAL",
		"DRIVERLOG_KAFKA_BROKERS",
		"DRIVERLOG_KAFKA_TOPIC",
		"DRIVERLOG_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() unexpected error: %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Fatalf("Backend = %q, want %q", cfg.Backend, BackendLocal)
	}
	if cfg.Location != time.Local {
		t.Fatalf("Location = %v, want Local", cfg.Location)
	}
	if cfg.AutoCloseInterval != time.Minute {
		t.Fatalf("AutoCloseInterval = %v, want 1m", cfg.AutoCloseInterval)
	}
	if cfg.KafkaTopic != "driverlog.ledger" {
		t.Fatalf("KafkaTopic = %q, want %q", cfg.KafkaTopic, "driverlog.ledger")
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("KafkaBrokers = %v, want none", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRIVERLOG_BACKEND", "Remote")
	t.Setenv("DRIVERLOG_API_URL", "https://api.example.test")
	t.Setenv("DRIVERLOG_TZ", "UTC")
	t.Setenv("DRIVERLOG_AUTOCLOSE_INTERVAL", "15s")
	t.Setenv("DRIVERLOG_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("DRIVERLOG_LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() unexpected error: %v", err)
	}
	if cfg.Backend != BackendRemote {
		t.Fatalf("Backend = %q, want %q", cfg.Backend, BackendRemote)
	}
	if cfg.Location.String() != "UTC" {
		t.Fatalf("Location = %v, want UTC", cfg.Location)
	}
	if cfg.AutoCloseInterval != 15*time.Second {
		t.Fatalf("AutoCloseInterval = %v, want 15s", cfg.AutoCloseInterval)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("KafkaBrokers = %v, want [a:9092 b:9092]", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DRIVERLOG_BACKEND", "cloud"},
		{"DRIVERLOG_TZ", "Not/AZone"},
		{"DRIVERLOG_AUTOCLOSE_INTERVAL", "soon"},
		{"DRIVERLOG_AUTOCLOSE_INTERVAL", "-5s"},
		{"DRIVERLOG_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		clearEnv(t)
		t.Setenv(tt.key, tt.value)
		if _, err := FromEnv(); err == nil {
			t.Fatalf("FromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.value)
		}
	}
}

func TestLoadReadsDotenvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRIVERLOG_KAFKA_TOPIC", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	content := "DRIVERLOG_BACKEND=remote\nDRIVERLOG_KAFKA_TOPIC=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv sets process env directly; restore it after the test.
	t.Setenv("DRIVERLOG_BACKEND", "")
	os.Unsetenv("DRIVERLOG_BACKEND")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Backend != BackendRemote {
		t.Fatalf("Backend = %q, want %q", cfg.Backend, BackendRemote)
	}
	if cfg.KafkaTopic != "from-env" {
		t.Fatalf("KafkaTopic = %q, want %q", cfg.KafkaTopic, "from-env")
	}
}

func TestLoadSkipsMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lachiem1/driverlog/internal/events/kafka"
)

type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

const defaultAutoCloseInterval = 60 * time.Second

// Config is the process-level configuration. Database and token settings
// are read by the storage and auth packages.
type Config struct {
	Backend           Backend
	APIURL            string
	Location          *time.Location
	AutoCloseInterval time.Duration
	KafkaBrokers      []string
	KafkaTopic        string
	LogLevel          slog.Level
}

// Load reads optional dotenv files and then the environment. Files that do
// not exist are skipped; variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Backend:    Backend(strings.ToLower(envOrDefault("DRIVERLOG_BACKEND", string(BackendLocal)))),
		APIURL:     strings.TrimSpace(os.Getenv("DRIVERLOG_API_URL")),
		KafkaTopic: envOrDefault("DRIVERLOG_KAFKA_TOPIC", kafka.DefaultTopic),
	}

	switch cfg.Backend {
	case BackendLocal, BackendRemote:
	default:
		return Config{}, fmt.Errorf("unsupported DRIVERLOG_BACKEND %q", cfg.Backend)
	}

	tz := strings.TrimSpace(os.Getenv("DRIVERLOG_TZ"))
	if tz == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("DRIVERLOG_TZ: %w", err)
		}
		cfg.Location = loc
	}

	interval, err := time.ParseDuration(envOrDefault("DRIVERLOG_AUTOCLOSE_INTERVAL", defaultAutoCloseInterval.String()))
	if err != nil {
		return Config{}, fmt.Errorf("DRIVERLOG_AUTOCLOSE_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return Config{}, fmt.Errorf("DRIVERLOG_AUTOCLOSE_INTERVAL must be positive, got %s", interval)
	}
	cfg.AutoCloseInterval = interval

	for _, b := range strings.Split(os.Getenv("DRIVERLOG_KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOrDefault("DRIVERLOG_LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("DRIVERLOG_LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// Logger returns a text logger at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/notifier"
	"hwbot/internal/observability/ops"
	"hwbot/internal/poller"
	"hwbot/internal/practicum"
	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled:    l.File.Enabled,
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapPracticumConfig(cfg *config.Config, token string) (practicum.Config, error) {
	timeout, err := config.ParseDurationOrDefault("practicum.timeout", cfg.Practicum.Timeout, 30*time.Second)
	if err != nil {
		return practicum.Config{}, err
	}
	endpoint := strings.TrimSpace(cfg.Practicum.Endpoint)
	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}
	return practicum.Config{Endpoint: endpoint, Token: token, Timeout: timeout}, nil
}

func mapNotifierConfig(cfg *config.Config, target kit.ChatTarget) notifier.Config {
	return notifier.Config{Target: target, RatePerSec: cfg.Telegram.RatePerSec}
}

func mapRetrySchedule(cfg *config.Config) (poller.Schedule, error) {
	raw := strings.TrimSpace(cfg.Poller.RetryPeriod)
	if raw == "" {
		raw = config.DefaultRetryPeriod
	}
	sch, err := poller.ParseRetryPeriod(raw)
	if err != nil {
		return nil, fmt.Errorf("poller.retry_period: %w", err)
	}
	return sch, nil
}

func mapOpsConfig(cfg *config.Config) ops.Config {
	return ops.Config{Addr: strings.TrimSpace(cfg.Ops.Addr), Pprof: cfg.Ops.Pprof}
}

// ValidateConfig is installed as the ConfigManager validator: a file that
// fails here is never committed, neither at startup nor on reload.
func ValidateConfig(_ context.Context, cfg *config.Config) error {
	if _, err := mapRetrySchedule(cfg); err != nil {
		return err
	}
	if _, err := mapPracticumConfig(cfg, ""); err != nil {
		return err
	}
	if _, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if cfg.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec must be >= 0")
	}
	return nil
}

package config

// Config is the optional tuning file. Credentials never live here: they are
// read from the environment only (see Credentials).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Poller    PollerConfig    `json:"poller"`
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Ops       OpsConfig       `json:"ops"`
	Systemd   SystemdConfig   `json:"systemd"`
}

type PracticumConfig struct {
	Endpoint string `json:"endpoint"`
	// Timeout bounds a single API request. "0s" falls back to the default.
	Timeout string `json:"timeout"`
}

// PollerConfig controls the polling cadence.
//
// RetryPeriod accepts:
//   - Go duration: "600s", "10m"
//   - HH:MM interval: "00:10"
//   - cron / descriptor: "*/10 * * * *", "@every 10m"
type PollerConfig struct {
	RetryPeriod string `json:"retry_period"`
	// NotifyOnFailure is a pointer so an omitted key keeps the default (true).
	NotifyOnFailure *bool `json:"notify_on_failure,omitempty"`
}

type TelegramConfig struct {
	// Timeout bounds a single Bot API request. Applied at startup only.
	Timeout string `json:"timeout"`
	// RatePerSec caps outbound sendMessage calls.
	RatePerSec int `json:"rate_per_sec"`
	// ThreadID targets a forum topic inside TELEGRAM_CHAT_ID (0 = none).
	ThreadID int `json:"thread_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the cycle journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/journal" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// OpsConfig controls the optional operational HTTP server.
//
// Prefer binding to localhost: /healthz exposes the poll cursor and the last
// error text.
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}

type SystemdConfig struct {
	// Notify sends sd_notify READY/WATCHDOG/STOPPING. It is a no-op when
	// NOTIFY_SOCKET is not set, so the default is on.
	Notify *bool `json:"notify,omitempty"`
}

const (
	DefaultEndpoint    = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultRetryPeriod = "600s"
	DefaultAPITimeout  = "30s"
	DefaultOpsAddr     = "127.0.0.1:8089"
)

// Default returns the configuration used when no tuning file is given.
// Parse decodes on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Practicum: PracticumConfig{
			Endpoint: DefaultEndpoint,
			Timeout:  DefaultAPITimeout,
		},
		Poller: PollerConfig{
			RetryPeriod: DefaultRetryPeriod,
		},
		Telegram: TelegramConfig{
			Timeout:    "10s",
			RatePerSec: 1,
		},
		Logging: LoggingConfig{
			Level:   "DEBUG",
			Console: true,
			Telegram: LoggingTelegram{
				MinLevel:   "ERROR",
				RatePerSec: 1,
			},
		},
		Ops: OpsConfig{Addr: DefaultOpsAddr},
	}
}

// NotifyOnFailure reports whether cycle failures are forwarded to the chat.
func (c *Config) NotifyOnFailure() bool {
	if c == nil || c.Poller.NotifyOnFailure == nil {
		return true
	}
	return *c.Poller.NotifyOnFailure
}

// SystemdNotify reports whether sd_notify messages should be sent.
func (c *Config) SystemdNotify() bool {
	if c == nil || c.Systemd.Notify == nil {
		return true
	}
	return *c.Systemd.Notify
}

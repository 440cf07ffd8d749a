package notifier

import (
	"time"

	kit "hwbot/internal/transport"
)

type Config struct {
	Target kit.ChatTarget
	// RatePerSec caps sends per second (burst = 1). Zero means 1.
	RatePerSec int
	// HistorySize bounds the in-memory history. Zero means 20.
	HistorySize int
}

type HistoryItem struct {
	At    time.Time
	Text  string
	Error string
}

package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON Lines file
//   - "sqlite": SQLite database file (build tag "sqlite")
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Cycle records the outcome of one polling cycle.
// Keep it compact and schema-stable.
type Cycle struct {
	At           time.Time `json:"at"`
	CursorBefore int64     `json:"cursor_before"`
	CursorAfter  int64     `json:"cursor_after"`
	OK           bool      `json:"ok"`
	Homework     string    `json:"homework,omitempty"`
	Status       string    `json:"status,omitempty"`
	Message      string    `json:"message,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	TookMS       int64     `json:"took_ms"`
}

// Journal is the persistence API used by the poller and the ops server.
type Journal interface {
	AppendCycle(ctx context.Context, c Cycle) error
	// Recent returns up to limit cycles, newest first.
	Recent(ctx context.Context, limit int) ([]Cycle, error)
	Close() error
}

package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines files next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryRecord is one finished delivery.
type DeliveryRecord struct {
	DeliveryID  string    `json:"delivery_id"`
	ReminderID  string    `json:"reminder_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Reason      string    `json:"reason"`
	ShownAt     time.Time `json:"shown_at"`
	DismissedAt time.Time `json:"dismissed_at"`
}

// AuditEntry records a dispatched command.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"`
	Command string    `json:"command"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	TookMS  int64     `json:"took_ms"`
}

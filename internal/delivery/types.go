package delivery

import (
	"context"
	"errors"
	"time"

	"tasky/internal/reminder"
)

type State string

const (
	StateVisible   State = "visible"
	StateDismissed State = "dismissed"
)

// Reason records why a delivery left the Visible state.
type Reason string

const (
	ReasonUser       Reason = "user"
	ReasonTimeout    Reason = "timeout"
	ReasonSuperseded Reason = "superseded"
	ReasonShutdown   Reason = "shutdown"
)

// Delivery is the record of one shown reminder.
type Delivery struct {
	ID          string
	ReminderID  string
	Task        reminder.Task
	State       State
	ShownAt     time.Time
	DismissedAt time.Time
	Reason      Reason
}

// Surface renders deliveries. Show and Close are called from the presenter
// loop, one at a time.
type Surface interface {
	Show(ctx context.Context, d Delivery) error
	Close(ctx context.Context, d Delivery) error
}

type Config struct {
	// DismissAfter closes a visible delivery automatically. Zero disables it.
	DismissAfter time.Duration
	// SurfaceTimeout bounds each Show/Close call.
	SurfaceTimeout time.Duration
}

const (
	DefaultDismissAfter   = 20 * time.Second
	DefaultSurfaceTimeout = 10 * time.Second
)

var (
	ErrNotRunning = errors.New("delivery presenter not running")
	ErrNoSurface  = errors.New("no delivery surface configured")
)

package reminder

import (
	"context"
	"strings"
	"time"
)

// Task is the payload shown when a reminder fires. The scheduler never
// interprets it; Meta carries transport routing (e.g. the requesting chat).
type Task struct {
	Title string
	Body  string
	Meta  map[string]string
}

// Clone returns a copy that does not share the Meta map.
func (t Task) Clone() Task {
	cp := t
	if t.Meta != nil {
		cp.Meta = make(map[string]string, len(t.Meta))
		for k, v := range t.Meta {
			cp.Meta[k] = v
		}
	}
	return cp
}

// Request is a single "remind me at" submission.
type Request struct {
	At   TimeOfDay
	Task Task
	// Key identifies "the same task" for superseding. Empty means the
	// normalized task title.
	Key string
}

// Pending is an armed reminder.
type Pending struct {
	ID      string
	Key     string
	Task    Task
	At      TimeOfDay
	Target  time.Time
	Delay   time.Duration
	ArmedAt time.Time

	seq uint64
}

// FireFunc receives a reminder once its target instant is reached. It runs on
// the scheduler goroutine.
type FireFunc func(ctx context.Context, p Pending)

// Config controls scheduling policy. All fields are hot-reloadable.
type Config struct {
	// Timezone is an IANA name, e.g. "Asia/Jakarta". Empty means Local.
	Timezone  string
	Policy    Policy
	Supersede bool
}

// Handle is the cancellation capability returned by Schedule.
type Handle struct {
	s          *Scheduler
	p          Pending
	superseded []string
}

func (h *Handle) ID() string           { return h.p.ID }
func (h *Handle) Target() time.Time    { return h.p.Target }
func (h *Handle) Delay() time.Duration { return h.p.Delay }
func (h *Handle) Pending() Pending     { return h.p }

// Superseded lists the IDs of older reminders this one replaced.
func (h *Handle) Superseded() []string { return append([]string(nil), h.superseded...) }

// Cancel disarms the reminder. It reports false if it already fired, was
// superseded or was cancelled before.
func (h *Handle) Cancel() bool {
	if h == nil || h.s == nil {
		return false
	}
	return h.s.Cancel(h.p.ID)
}

func normalizeKey(key, title string) string {
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

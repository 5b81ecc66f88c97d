// Package command is the message-passing surface between transports (tray,
// chat, console) and the application: named commands with typed payloads,
// a registry of handlers and a dispatcher running them through middleware.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tasky/internal/reminder"
	"tasky/pkg/logx"
)

// Command names.
const (
	ReminderSchedule = "reminder.schedule"
	ReminderCancel   = "reminder.cancel"
	ReminderList     = "reminder.list"
	DeliveryDismiss  = "delivery.dismiss"
	MainClose        = "main.close"
	MainShow         = "main.show"
	TrayClick        = "tray.click"
	TrayMenu         = "tray.menu"
	AppQuit          = "app.quit"
	HistoryList      = "history.list"
	UpdateCheck      = "update.check"
	Help             = "help"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadPayload     = errors.New("bad command payload")
	ErrUnauthorized   = errors.New("unauthorized")
)

// Caller identifies who sent a command.
type Caller struct {
	// Source is the transport name: "tray", "telegram", "console".
	Source string
	// Owner marks a trusted caller. Owner-only commands reject everyone else.
	Owner bool
	// Meta carries transport routing, e.g. "chat_id". It is copied into the
	// task of scheduled reminders.
	Meta map[string]string
}

type Command struct {
	Name    string
	Payload any
	Caller  Caller
}

type ScheduleArgs struct {
	At   string
	Task reminder.Task
	Key  string
}

type CancelArgs struct{ ID string }

type DismissArgs struct{ ID string }

type HistoryArgs struct{ Limit int }

type HelpArgs struct{ Topic string }

// Result is what a handler hands back to the transport.
type Result struct {
	Text string
	Data any
}

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

// Request is the per-dispatch context passed to handlers.
type Request struct {
	Command Command
	ReqID   string
	Logger  logx.Logger
}

type HandlerFunc func(ctx context.Context, req *Request) (Result, error)

type Entry struct {
	Name        string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

// Registry maps command names to handlers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Register adds an everyone-access handler.
func (r *Registry) Register(name, description string, h HandlerFunc) error {
	return r.RegisterEntry(Entry{Name: name, Description: description, Handle: h})
}

func (r *Registry) RegisterEntry(e Entry) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" || e.Handle == nil {
		return fmt.Errorf("register command %q: name and handler required", e.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("register command %q: already registered", e.Name)
	}
	r.entries[e.Name] = e
	return nil
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns all registered commands sorted by name.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HelpText renders the registry, or one entry when topic names a command or
// one of its text verbs.
func (r *Registry) HelpText(topic string) string {
	topic = strings.TrimPrefix(strings.TrimSpace(topic), "/")
	if topic != "" {
		name := topic
		if n, ok := verbs[topic]; ok {
			name = n
		}
		e, ok := r.Lookup(name)
		if !ok {
			return "command not found. try help"
		}
		lines := []string{e.Name + ": " + e.Description}
		if e.Usage != "" {
			lines = append(lines, "Usage: "+e.Usage)
		}
		return strings.Join(lines, "\n")
	}

	lines := []string{"Commands:"}
	for _, e := range r.Entries() {
		usage := e.Usage
		if usage == "" {
			usage = e.Name
		}
		line := "- " + usage
		if e.Description != "" {
			line += " : " + e.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// PayloadAs extracts a typed payload. A nil payload yields the zero value.
func PayloadAs[T any](cmd Command) (T, error) {
	var zero T
	switch v := cmd.Payload.(type) {
	case nil:
		return zero, nil
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, nil
		}
		return *v, nil
	default:
		return zero, fmt.Errorf("%w: %s expects %T, got %T", ErrBadPayload, cmd.Name, zero, cmd.Payload)
	}
}

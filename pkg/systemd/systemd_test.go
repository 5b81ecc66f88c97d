package systemd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tasky/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func TestNotifierStates(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	n := NewNotifier(logx.Nop())
	n.notify = rec.notify

	n.Ready()
	n.Status("2 reminders armed")
	n.Reloading()
	n.Stopping()

	want := []string{"READY=1", "STATUS=2 reminders armed", "RELOADING=1", "STOPPING=1"}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("states=%q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func TestWatchdogDisabledReturns(t *testing.T) {
	t.Parallel()

	n := NewNotifier(logx.Nop())
	n.watchdog = func() (time.Duration, error) { return 0, nil }
	n.Watchdog(context.Background())

	n.watchdog = func() (time.Duration, error) { return 0, errors.New("bad WATCHDOG_USEC") }
	n.Watchdog(context.Background())
}

func TestWatchdogPings(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	n := NewNotifier(logx.Nop())
	n.notify = rec.notify
	n.watchdog = func() (time.Duration, error) { return 10 * time.Millisecond, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Watchdog(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for len(rec.snapshot()) < 2 {
		select {
		case <-deadline:
			t.Fatal("no watchdog pings")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
	for _, s := range rec.snapshot() {
		if s != "WATCHDOG=1" {
			t.Fatalf("unexpected state %q", s)
		}
	}
}

package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tasky/internal/command"
	"tasky/internal/delivery"
	"tasky/internal/reminder"
	"tasky/pkg/logx"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestRunDispatchesLines(t *testing.T) {
	t.Parallel()

	var got []command.Command
	reg := command.NewRegistry()
	handler := func(_ context.Context, req *command.Request) (command.Result, error) {
		got = append(got, req.Command)
		return command.Result{Text: "ok " + req.Command.Name}, nil
	}
	_ = reg.RegisterEntry(command.Entry{Name: command.ReminderList, Access: command.AccessOwnerOnly, Handle: handler})
	_ = reg.Register(command.ReminderCancel, "cancel", handler)

	in := strings.NewReader("list\n\nbogus\ncancel\ncancel abc\n")
	out := &syncBuffer{}
	c := New(in, out, command.NewDispatcher(reg, logx.Nop(), time.Second), logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	text := out.String()
	for _, want := range []string{"ok reminder.list", "unknown command. try help", "error: bad command payload", "ok reminder.cancel"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if len(got) != 2 || !got[0].Caller.Owner || got[0].Caller.Source != "console" {
		t.Fatalf("dispatched=%+v", got)
	}
	if args, _ := command.PayloadAs[command.CancelArgs](got[1]); args.ID != "abc" {
		t.Fatalf("cancel id=%q", args.ID)
	}
}

func TestSurfacePrintsDelivery(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	c := New(strings.NewReader(""), out, nil, logx.Nop())
	d := delivery.Delivery{ID: "d-1", Task: reminder.Task{Title: "tea", Body: "green"}}
	_ = c.Show(context.Background(), d)
	d.Reason = delivery.ReasonUser
	_ = c.Close(context.Background(), d)

	text := out.String()
	if !strings.Contains(text, "⏰ tea | green  (dismiss d-1)") || !strings.Contains(text, "[user] tea") {
		t.Fatalf("output=%q", text)
	}
}

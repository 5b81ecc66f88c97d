package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tasky/internal/command"
	"tasky/internal/delivery"
	"tasky/internal/reminder"
	kit "tasky/internal/transport"
	"tasky/internal/update"
	"tasky/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
	opt  kit.SendOptions
}

type fakeAdapter struct {
	mu      sync.Mutex
	nextID  int
	sends   []sent
	edits   map[int]sent
	answers []string
	deleted []int
	events  chan struct{}
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{edits: map[int]sent{}, events: make(chan struct{}, 64)}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.nextID++
	s := sent{to: to, text: text}
	if opt != nil {
		s.opt = *opt
	}
	f.sends = append(f.sends, s)
	id := f.nextID
	f.mu.Unlock()
	f.events <- struct{}{}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: id}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	s := sent{to: kit.ChatTarget{ChatID: ref.ChatID}, text: text}
	if opt != nil {
		s.opt = *opt
	}
	f.edits[ref.MessageID] = s
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) DeleteMessage(_ context.Context, ref kit.MessageRef) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, ref.MessageID)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	f.answers = append(f.answers, text)
	f.mu.Unlock()
	f.events <- struct{}{}
	return nil
}

func (f *fakeAdapter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.events:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for adapter call")
	}
}

func (f *fakeAdapter) lastSend() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[len(f.sends)-1]
}

func (f *fakeAdapter) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[len(f.answers)-1]
}

func newTestRouter(t *testing.T, owners ...int64) (*Router, *fakeAdapter, chan kit.Update, *[]command.Command) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []command.Command
	)
	reg := command.NewRegistry()
	record := func(text string) command.HandlerFunc {
		return func(_ context.Context, req *command.Request) (command.Result, error) {
			mu.Lock()
			seen = append(seen, req.Command)
			mu.Unlock()
			return command.Result{Text: text}, nil
		}
	}
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(reg.RegisterEntry(command.Entry{Name: command.ReminderSchedule, Description: "schedule a reminder", Access: command.AccessOwnerOnly, Handle: record("armed")}))
	must(reg.RegisterEntry(command.Entry{Name: command.DeliveryDismiss, Description: "dismiss", Access: command.AccessOwnerOnly, Handle: record("dismissed")}))
	must(reg.Register(command.Help, "show help", record("help text")))

	fa := newFakeAdapter()
	r := New(Config{Owners: owners}, fa, command.NewDispatcher(reg, logx.Nop(), time.Second), logx.Nop())
	updates := make(chan kit.Update, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r, fa, updates, &seen
}

func message(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 42, ThreadID: 7, FromID: from, Text: text}}
}

func TestRouterDispatchesOwnerCommand(t *testing.T) {
	t.Parallel()

	_, fa, updates, seen := newTestRouter(t, 1)
	updates <- message(1, `/remind 09:05 "buy milk" --body 2L`)
	fa.wait(t)

	got := fa.lastSend()
	if got.text != "armed" || got.to != (kit.ChatTarget{ChatID: 42, ThreadID: 7}) {
		t.Fatalf("reply=%+v", got)
	}
	cmd := (*seen)[0]
	if cmd.Caller.Source != "telegram" || !cmd.Caller.Owner || cmd.Caller.Meta[MetaChatID] != "42" {
		t.Fatalf("caller=%+v", cmd.Caller)
	}
	args, err := command.PayloadAs[command.ScheduleArgs](cmd)
	if err != nil || args.At != "09:05" || args.Task.Title != "buy milk" || args.Task.Body != "2L" {
		t.Fatalf("args=%+v err=%v", args, err)
	}
}

func TestRouterReplies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		from int64
		text string
		want string
	}{
		{name: "stranger", from: 9, text: "/remind 09:05 tea", want: "unauthorized"},
		{name: "unknown", from: 1, text: "/frobnicate", want: "unknown command. try /help"},
		{name: "bad payload", from: 1, text: "/remind 09:05", want: "error: "},
		{name: "everyone", from: 9, text: "/help@tasky_bot", want: "help text"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, fa, updates, _ := newTestRouter(t, 1)
			updates <- message(tc.from, tc.text)
			fa.wait(t)
			if got := fa.lastSend().text; !strings.HasPrefix(got, tc.want) {
				t.Fatalf("reply=%q, want prefix %q", got, tc.want)
			}
		})
	}
}

func TestRouterIgnoresPlainText(t *testing.T) {
	t.Parallel()

	_, fa, updates, _ := newTestRouter(t, 1)
	updates <- message(1, "remind 09:05 tea")
	updates <- message(1, "/help")
	fa.wait(t)
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.sends) != 1 || fa.sends[0].text != "help text" {
		t.Fatalf("sends=%+v", fa.sends)
	}
}

func TestRouterCommandCallback(t *testing.T) {
	t.Parallel()

	r, fa, updates, seen := newTestRouter(t, 1)
	r.HandleCallback("dismiss", r.CommandCallback(command.DeliveryDismiss, func(data string) any {
		return command.DismissArgs{ID: data}
	}))

	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", FromID: 1, ChatID: 42, Data: "dismiss:d-1"}}
	fa.wait(t)
	if got := fa.lastAnswer(); got != "dismissed" {
		t.Fatalf("answer=%q", got)
	}
	args, _ := command.PayloadAs[command.DismissArgs]((*seen)[0])
	if args.ID != "d-1" {
		t.Fatalf("dismiss id=%q", args.ID)
	}

	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb2", FromID: 5, ChatID: 42, Data: "dismiss:d-1"}}
	fa.wait(t)
	if got := fa.lastAnswer(); got != "unauthorized" {
		t.Fatalf("stranger answer=%q", got)
	}
}

func TestSurfaceShowAndClose(t *testing.T) {
	t.Parallel()

	fa := newFakeAdapter()
	s := NewSurface(fa, kit.ChatTarget{ChatID: 100}, logx.Nop())
	ctx := context.Background()

	d := delivery.Delivery{ID: "d-1", Task: reminder.Task{Title: "stretch", Body: "stand up", Meta: map[string]string{MetaChatID: "42", MetaThreadID: "3"}}}
	if err := s.Show(ctx, d); err != nil {
		t.Fatal(err)
	}
	got := fa.lastSend()
	if got.to != (kit.ChatTarget{ChatID: 42, ThreadID: 3}) || got.text != "⏰ <b>stretch</b>\nstand up" {
		t.Fatalf("send=%+v", got)
	}
	if len(got.opt.Buttons) != 1 || got.opt.Buttons[0].Data != "dismiss:d-1" {
		t.Fatalf("buttons=%+v", got.opt.Buttons)
	}

	d.Reason = delivery.ReasonTimeout
	if err := s.Close(ctx, d); err != nil {
		t.Fatal(err)
	}
	fa.mu.Lock()
	edit := fa.edits[1]
	fa.mu.Unlock()
	if !strings.HasSuffix(edit.text, "<i>expired</i>") || edit.opt.Buttons == nil || len(edit.opt.Buttons) != 0 {
		t.Fatalf("edit=%+v", edit)
	}

	// Without chat meta the fallback chat is used.
	if err := s.Show(ctx, delivery.Delivery{ID: "d-2", Task: reminder.Task{Title: "water"}}); err != nil {
		t.Fatal(err)
	}
	if got := fa.lastSend().to.ChatID; got != 100 {
		t.Fatalf("fallback chat=%d", got)
	}
	if err := s.Close(ctx, delivery.Delivery{ID: "d-2", Reason: delivery.ReasonUser}); err != nil {
		t.Fatal(err)
	}
	fa.mu.Lock()
	deleted := append([]int(nil), fa.deleted...)
	fa.mu.Unlock()
	if len(deleted) != 1 || deleted[0] != 2 {
		t.Fatalf("deleted=%v, want [2]", deleted)
	}

	s.SetFallback(kit.ChatTarget{})
	if err := s.Show(ctx, delivery.Delivery{ID: "d-3", Task: reminder.Task{Title: "x"}}); !errors.Is(err, errNoChat) {
		t.Fatalf("err=%v, want errNoChat", err)
	}
}

func TestPrompterConfirm(t *testing.T) {
	t.Parallel()

	fa := newFakeAdapter()
	p := NewPrompter(fa, kit.ChatTarget{ChatID: 1}, logx.Nop())

	type result struct {
		yes bool
		err error
	}
	out := make(chan result, 1)
	go func() {
		yes, err := p.Confirm(context.Background(), update.Release{Version: "1.2.0"})
		out <- result{yes, err}
	}()
	fa.wait(t)
	prompt := fa.lastSend()
	if !strings.Contains(prompt.text, "1.2.0") || len(prompt.opt.Buttons) != 2 {
		t.Fatalf("prompt=%+v", prompt)
	}
	_, payload, _ := strings.Cut(prompt.opt.Buttons[0].Data, ":")

	if _, err := p.Callback(context.Background(), kit.Callback{}, payload, false); !errors.Is(err, command.ErrUnauthorized) {
		t.Fatalf("stranger err=%v", err)
	}
	if ans, err := p.Callback(context.Background(), kit.Callback{}, payload, true); err != nil || ans != "ok" {
		t.Fatalf("owner answer=%q err=%v", ans, err)
	}
	r := <-out
	if !r.yes || r.err != nil {
		t.Fatalf("confirm=%+v", r)
	}
	if ans, _ := p.Callback(context.Background(), kit.Callback{}, payload, true); ans != "prompt expired" {
		t.Fatalf("late answer=%q", ans)
	}
}

func TestPrompterContextEnds(t *testing.T) {
	t.Parallel()

	fa := newFakeAdapter()
	p := NewPrompter(fa, kit.ChatTarget{ChatID: 1}, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	yes, err := p.Confirm(ctx, update.Release{Version: "2.0.0"})
	if yes || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("yes=%v err=%v", yes, err)
	}
}

func TestMenuCommands(t *testing.T) {
	t.Parallel()

	reg := command.NewRegistry()
	noop := func(context.Context, *command.Request) (command.Result, error) { return command.Result{}, nil }
	_ = reg.Register(command.ReminderSchedule, "schedule a reminder", noop)
	_ = reg.Register(command.ReminderList, "list armed reminders", noop)
	_ = reg.Register(command.Help, "show\nhelp", noop)

	got := MenuCommands(reg)
	want := []kit.BotCommand{
		{Command: "help", Description: "show help"},
		{Command: "list", Description: "list armed reminders"},
		{Command: "remind", Description: "schedule a reminder"},
	}
	if len(got) != len(want) {
		t.Fatalf("menu=%+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("menu[%d]=%+v want %+v", i, got[i], want[i])
		}
	}
}

func TestSanitizeCommand(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/Remind":    "remind",
		"reminder.x": "reminder_x",
		"9lives":     "cmd_9lives",
		"--":         "",
		"a--b":       "a_b",
	}
	for in, want := range cases {
		if got := sanitizeCommand(in); got != want {
			t.Errorf("sanitizeCommand(%q)=%q want %q", in, got, want)
		}
	}
}

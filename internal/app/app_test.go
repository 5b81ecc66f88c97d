package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"tasky/internal/command"
	"tasky/internal/config"
	"tasky/internal/delivery"
	"tasky/internal/reminder"
	"tasky/internal/surface"
	"tasky/pkg/logx"
)

type testApp struct {
	*App
	clk     *clockwork.FakeClock
	windows *surface.HeadlessFactory
	tray    *surface.HeadlessTray
	dir     string
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func baseConfig(dir string) string {
	return `{
  "app": {"name": "Tasky Test", "start_hidden": true},
  "logging": {"level": "error", "console": true},
  "reminder": {"timezone": "UTC"},
  "delivery": {"dismiss_after": "0s", "platform": "linux"},
  "commands": {"audit": true},
  "storage": {"driver": "file", "path": "` + filepath.ToSlash(filepath.Join(dir, "history")) + `"}
}`
}

func newTestApp(t *testing.T, body string) *testApp {
	t.Helper()
	dir := t.TempDir()
	if body == "" {
		body = baseConfig(dir)
	}
	tt := &testApp{
		clk:     clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)),
		windows: surface.NewHeadlessFactory(logx.Nop()),
		tray:    surface.NewHeadlessTray(surface.Rect{X: 1880, Y: 1040, W: 24, H: 24}, logx.Nop()),
		dir:     dir,
	}
	a, err := NewApp(Options{
		ConfigPath: writeConfig(t, dir, body),
		Version:    "1.0.0",
		Windows:    tt.windows,
		Tray:       tt.tray,
		Screen:     surface.StaticScreen{W: 1920, H: 1040},
		Stdin:      strings.NewReader(""),
		Stdout:     &strings.Builder{},
		Clock:      tt.clk,
	})
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}
	tt.App = a
	return tt
}

func (tt *testApp) start(t *testing.T) {
	t.Helper()
	if err := tt.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tt.Stop(ctx, StopQuit)
	})
}

var owner = command.Caller{Source: "test", Owner: true}

func (tt *testApp) run(t *testing.T, name string, payload any) command.Result {
	t.Helper()
	res, err := tt.Dispatcher().Dispatch(context.Background(), command.Command{Name: name, Payload: payload, Caller: owner})
	if err != nil {
		t.Fatalf("%s error: %v", name, err)
	}
	return res
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRemindFireDismissRecordsHistory(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")
	tt.start(t)

	res := tt.run(t, command.ReminderSchedule, command.ScheduleArgs{At: "09:01", Task: reminder.Task{Title: "stretch"}})
	if !strings.Contains(res.Text, "armed for") {
		t.Fatalf("schedule reply %q", res.Text)
	}
	if got := tt.run(t, command.ReminderList, nil).Text; !strings.Contains(got, "stretch") {
		t.Fatalf("list reply %q", got)
	}

	armed, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tt.clk.BlockUntilContext(armed, 1); err != nil {
		t.Fatalf("scheduler armed no timer: %v", err)
	}
	tt.clk.Advance(time.Minute)

	var shown delivery.Delivery
	waitFor(t, "delivery", func() bool {
		d, ok := tt.pres.Current()
		shown = d
		return ok
	})
	if shown.Task.Title != "stretch" {
		t.Fatalf("shown %+v", shown)
	}
	var win *surface.HeadlessWindow
	for _, w := range tt.windows.Windows() {
		if w.IsVisible() && w.AlwaysOnTop() {
			win = w
		}
	}
	if win == nil {
		t.Fatal("no always-on-top reminder window")
	}
	if want := surface.ReminderBounds(surface.Rect{W: 1920, H: 1040}, tt.tray.Bounds(), surface.ReminderSize, "linux"); win.Bounds() != want {
		t.Fatalf("bounds=%+v want %+v", win.Bounds(), want)
	}

	if got := tt.run(t, command.DeliveryDismiss, command.DismissArgs{}).Text; got != "dismissed" {
		t.Fatalf("dismiss reply %q", got)
	}
	if !win.IsClosed() {
		t.Fatal("reminder window still open")
	}
	if got := tt.run(t, command.DeliveryDismiss, command.DismissArgs{}).Text; got != "nothing to dismiss" {
		t.Fatalf("second dismiss reply %q", got)
	}

	waitFor(t, "history row", func() bool {
		return strings.Contains(tt.run(t, command.HistoryList, command.HistoryArgs{Limit: 5}).Text, "stretch [user]")
	})

	audit, err := os.ReadFile(filepath.Join(tt.dir, "history.audit.jsonl"))
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if !strings.Contains(string(audit), `"command":"reminder.schedule"`) {
		t.Fatalf("audit log missing schedule: %s", audit)
	}
}

func TestScheduleRejectionIsReturned(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")
	tt.start(t)

	_, err := tt.Dispatcher().Dispatch(context.Background(), command.Command{
		Name:    command.ReminderSchedule,
		Payload: command.ScheduleArgs{At: "25:00", Task: reminder.Task{Title: "x"}},
		Caller:  owner,
	})
	if !errors.Is(err, reminder.ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
}

func TestCancelByPrefix(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")
	tt.start(t)

	res := tt.run(t, command.ReminderSchedule, command.ScheduleArgs{At: "10:00", Task: reminder.Task{Title: "call"}})
	p, ok := res.Data.(reminder.Pending)
	if !ok {
		t.Fatalf("schedule data %T", res.Data)
	}
	if got := tt.run(t, command.ReminderCancel, command.CancelArgs{ID: p.ID[:8]}).Text; got != "cancelled "+p.ID[:8] {
		t.Fatalf("cancel reply %q", got)
	}
	if got := tt.run(t, command.ReminderList, nil).Text; got != "no pending reminders" {
		t.Fatalf("list reply %q", got)
	}
}

func TestOwnerOnlyCommands(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")
	stranger := command.Caller{Source: "telegram"}

	_, err := tt.Dispatcher().Dispatch(context.Background(), command.Command{Name: command.ReminderList, Caller: stranger})
	if !errors.Is(err, command.ErrUnauthorized) {
		t.Fatalf("err=%v want ErrUnauthorized", err)
	}
	res, err := tt.Dispatcher().Dispatch(context.Background(), command.Command{Name: command.Help, Caller: stranger})
	if err != nil || !strings.Contains(res.Text, "remind HH:MM") {
		t.Fatalf("help=%q err=%v", res.Text, err)
	}
}

func TestShellCommands(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")

	if tt.shell.MainVisible() {
		t.Fatal("main window visible despite start_hidden")
	}
	if got := tt.run(t, command.TrayClick, nil).Text; got != "main window shown" {
		t.Fatalf("toggle reply %q", got)
	}
	tt.run(t, command.MainClose, nil)
	if tt.shell.MainVisible() {
		t.Fatal("main.close did not hide")
	}
	if tt.tray.ToolTip() != "Tasky Test" {
		t.Fatalf("tooltip %q", tt.tray.ToolTip())
	}
}

func TestQuitPaths(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		quit func(tt *testApp)
	}{
		{"command", func(tt *testApp) { tt.run(t, command.AppQuit, nil) }},
		{"tray menu", func(tt *testApp) {
			tt.tray.RightClick()
			items := tt.tray.Menu()
			if len(items) != 1 || items[0].Label != "Quit" {
				t.Errorf("menu %+v", items)
				return
			}
			items[0].Click()
		}},
	}
	for _, tc := range cases {
		tt := newTestApp(t, "")
		tc.quit(tt)
		select {
		case r := <-tt.StopRequested():
			if r != StopQuit {
				t.Fatalf("%s: reason %q", tc.name, r)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no stop requested", tc.name)
		}
		// A second request is ignored.
		tt.RequestStop(StopUpdate)
	}
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"timezone", `{"reminder": {"timezone": "Mars/Olympus"}}`},
		{"policy", `{"reminder": {"past_policy": "later"}}`},
		{"surface", `{"delivery": {"surface": "pigeon"}}`},
		{"telegram surface without telegram", `{"delivery": {"surface": "telegram"}}`},
		{"cron", `{"update": {"enabled": true, "feed_url": "https://example.com", "schedule": "every day"}}`},
		{"unknown field", `{"reminders": {}}`},
		{"storage driver", `{"storage": {"driver": "mongo", "path": "x"}}`},
	}
	for _, tc := range cases {
		dir := t.TempDir()
		if _, err := NewApp(Options{ConfigPath: writeConfig(t, dir, tc.body)}); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestApplyConfigIsLive(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")
	old := tt.cfgm.Get()

	next := *old
	next.Reminder.PastPolicy = "reject"
	next.Commands.DefaultTimeout = "3s"
	after := "45s"
	next.Delivery.DismissAfter = &after
	tt.applyConfig(old, &next)

	if got := tt.sched.Config().Policy; got != reminder.PolicyReject {
		t.Fatalf("policy=%q", got)
	}
	tt.start(t)
	_, err := tt.Dispatcher().Dispatch(context.Background(), command.Command{
		Name:    command.ReminderSchedule,
		Payload: command.ScheduleArgs{At: "08:00", Task: reminder.Task{Title: "late"}},
		Caller:  owner,
	})
	if !errors.Is(err, reminder.ErrTimePassed) {
		t.Fatalf("err=%v want ErrTimePassed", err)
	}
}

func TestUpdateCheckDisabled(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")
	if got := tt.run(t, command.UpdateCheck, nil).Text; got != "update checks are disabled" {
		t.Fatalf("reply %q", got)
	}
}

func TestSelectSurface(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tt := newTestApp(t, `{"console": {"enabled": true}, "logging": {"level": "error"}, "storage": {"driver": "file", "path": "`+filepath.ToSlash(filepath.Join(dir, "h"))+`"}}`)

	s := tt.selectSurface(tt.cfgm.Get())
	fan, ok := s.(delivery.Fanout)
	if !ok || len(fan) != 2 {
		t.Fatalf("surface %T %v, want window+console fanout", s, s)
	}

	cfg := *tt.cfgm.Get()
	cfg.Console.Enabled = false
	tt.console = nil
	if _, ok := tt.selectSurface(&cfg).(*surface.WindowSurface); !ok {
		t.Fatal("want the window surface alone")
	}
}

func TestStopTimeoutDefault(t *testing.T) {
	t.Parallel()
	tt := newTestApp(t, "")
	if got := tt.StopTimeout(); got != config.DefaultStopTimeout {
		t.Fatalf("StopTimeout=%s", got)
	}
}

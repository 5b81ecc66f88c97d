package shell

import (
	"testing"

	"tasky/internal/surface"
	"tasky/pkg/logx"
)

func newTestShell(t *testing.T, cfg Config) (*Shell, *surface.HeadlessTray, *surface.HeadlessWindow, *int) {
	t.Helper()
	f := surface.NewHeadlessFactory(logx.Nop())
	tray := surface.NewHeadlessTray(surface.Rect{}, logx.Nop())
	quits := 0
	s, err := New(cfg, f, tray, func() { quits++ }, logx.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s, tray, f.Windows()[0], &quits
}

func TestTrayClickTogglesMain(t *testing.T) {
	t.Parallel()
	s, tray, main, _ := newTestShell(t, Config{AppName: "Tasky"})

	if !main.IsVisible() {
		t.Fatal("main window should start visible")
	}
	tray.Click()
	if main.IsVisible() || s.MainVisible() {
		t.Fatal("first click should hide")
	}
	tray.Click()
	if !main.IsVisible() {
		t.Fatal("second click should show")
	}
	if got := tray.ToolTip(); got != "Tasky" {
		t.Fatalf("tooltip = %q", got)
	}
}

func TestCloseHidesWithoutQuitting(t *testing.T) {
	t.Parallel()
	s, _, main, quits := newTestShell(t, Config{})

	s.HideMain()
	if main.IsVisible() || main.IsClosed() {
		t.Fatal("close should hide, not destroy")
	}
	if *quits != 0 {
		t.Fatal("close must not quit")
	}
	s.ShowMain()
	if !main.IsVisible() {
		t.Fatal("show after hide failed")
	}
}

func TestRightClickMenuQuits(t *testing.T) {
	t.Parallel()
	_, tray, _, quits := newTestShell(t, Config{StartHidden: true})

	tray.RightClick()
	menu := tray.Menu()
	if len(menu) != 1 || menu[0].Label != "Quit" {
		t.Fatalf("menu = %+v", menu)
	}
	menu[0].Click()
	if *quits != 1 {
		t.Fatalf("quits = %d, want 1", *quits)
	}
}

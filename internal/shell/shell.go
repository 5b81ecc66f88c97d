// Package shell owns the main window and the tray icon.
//
// A tray click toggles the main window. A right click pops a menu with a
// single Quit item. Closing the main window only hides it; the process keeps
// running in the tray until Quit.
package shell

import (
	"fmt"
	"sync"

	"tasky/internal/surface"
	"tasky/pkg/logx"
)

// MainSize is the main window size.
var MainSize = surface.Size{W: 800, H: 600}

type Config struct {
	AppName     string
	StartHidden bool
}

type Shell struct {
	mu   sync.Mutex
	name string
	main surface.Window
	tray surface.Tray
	quit func()
	log  logx.Logger
}

// New creates the main window and installs the tray handlers. quit is called
// from the tray menu.
func New(cfg Config, factory surface.WindowFactory, tray surface.Tray, quit func(), log logx.Logger) (*Shell, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.AppName == "" {
		cfg.AppName = "Tasky"
	}
	w, err := factory.NewWindow(surface.WindowOptions{Title: cfg.AppName, Size: MainSize, Frameless: true})
	if err != nil {
		return nil, fmt.Errorf("create main window: %w", err)
	}
	s := &Shell{name: cfg.AppName, main: w, tray: tray, quit: quit, log: log}

	tray.SetToolTip(cfg.AppName)
	tray.OnClick(s.Toggle)
	tray.OnRightClick(s.PopUpMenu)

	if !cfg.StartHidden {
		w.Show()
	}
	return s, nil
}

// Toggle flips main window visibility.
func (s *Shell) Toggle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.main.IsVisible() {
		s.main.Hide()
		s.log.Debug("main window hidden", logx.String("via", "toggle"))
		return
	}
	s.main.Show()
	s.log.Debug("main window shown", logx.String("via", "toggle"))
}

func (s *Shell) ShowMain() {
	s.mu.Lock()
	s.main.Show()
	s.mu.Unlock()
}

// HideMain handles a close request for the main window.
func (s *Shell) HideMain() {
	s.mu.Lock()
	s.main.Hide()
	s.mu.Unlock()
}

func (s *Shell) MainVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.main.IsVisible()
}

func (s *Shell) PopUpMenu() {
	s.tray.PopUpContextMenu([]surface.MenuItem{
		{Label: "Quit", Click: s.Quit},
	})
}

// Quit runs the quit callback.
func (s *Shell) Quit() {
	s.log.Info("quit requested from tray")
	if s.quit != nil {
		s.quit()
	}
}

// Close destroys the main window. Used on shutdown.
func (s *Shell) Close() {
	s.mu.Lock()
	s.main.Close()
	s.mu.Unlock()
}

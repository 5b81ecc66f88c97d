package surface

import (
	"context"
	"fmt"
	"sync"

	"tasky/internal/delivery"
	"tasky/pkg/logx"
)

// ReminderSize is the reminder window size.
var ReminderSize = Size{W: 360, H: 450}

// WindowSurface shows each delivery in its own always-on-top window placed
// next to the tray.
type WindowSurface struct {
	factory  WindowFactory
	screen   Screen
	tray     Tray
	platform string
	log      logx.Logger

	mu   sync.Mutex
	open map[string]Window
}

func NewWindowSurface(factory WindowFactory, screen Screen, tray Tray, platform string, log logx.Logger) *WindowSurface {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &WindowSurface{
		factory:  factory,
		screen:   screen,
		tray:     tray,
		platform: platform,
		log:      log,
		open:     map[string]Window{},
	}
}

func (s *WindowSurface) Show(ctx context.Context, d delivery.Delivery) error {
	w, err := s.factory.NewWindow(WindowOptions{Title: "reminder", Size: ReminderSize, Frameless: true})
	if err != nil {
		return fmt.Errorf("create reminder window: %w", err)
	}
	var tray Rect
	if s.tray != nil {
		tray = s.tray.Bounds()
	}
	b := ReminderBounds(s.screen.WorkArea(), tray, ReminderSize, s.platform)
	w.SetBounds(b)
	w.SetAlwaysOnTop(true)
	if err := w.Load(ctx, d.Task); err != nil {
		w.Close()
		return fmt.Errorf("load reminder window: %w", err)
	}
	w.Show()

	s.mu.Lock()
	s.open[d.ID] = w
	s.mu.Unlock()
	s.log.Debug("reminder window shown", logx.String("delivery_id", d.ID), logx.Int("x", b.X), logx.Int("y", b.Y))
	return nil
}

func (s *WindowSurface) Close(_ context.Context, d delivery.Delivery) error {
	s.mu.Lock()
	w, ok := s.open[d.ID]
	delete(s.open, d.ID)
	s.mu.Unlock()
	if ok {
		w.Close()
	}
	return nil
}

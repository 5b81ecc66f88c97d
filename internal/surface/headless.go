package surface

import (
	"context"
	"sync"

	"tasky/pkg/logx"
)

// HeadlessWindow records window state and logs transitions.
type HeadlessWindow struct {
	mu      sync.Mutex
	log     logx.Logger
	opts    WindowOptions
	visible bool
	closed  bool
	onTop   bool
	bounds  Rect
	content any
}

func (w *HeadlessWindow) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.visible {
		return
	}
	w.visible = true
	w.log.Debug("window shown", logx.String("title", w.opts.Title))
}

func (w *HeadlessWindow) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.visible {
		return
	}
	w.visible = false
	w.log.Debug("window hidden", logx.String("title", w.opts.Title))
}

func (w *HeadlessWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed, w.visible = true, false
	w.log.Debug("window closed", logx.String("title", w.opts.Title))
}

func (w *HeadlessWindow) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *HeadlessWindow) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *HeadlessWindow) SetAlwaysOnTop(on bool) {
	w.mu.Lock()
	w.onTop = on
	w.mu.Unlock()
}

func (w *HeadlessWindow) AlwaysOnTop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.onTop
}

func (w *HeadlessWindow) SetBounds(r Rect) {
	w.mu.Lock()
	w.bounds = r
	w.mu.Unlock()
}

func (w *HeadlessWindow) Bounds() Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func (w *HeadlessWindow) Load(_ context.Context, content any) error {
	w.mu.Lock()
	w.content = content
	w.mu.Unlock()
	return nil
}

// Content returns whatever was last passed to Load.
func (w *HeadlessWindow) Content() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.content
}

// HeadlessFactory creates HeadlessWindows and remembers them.
type HeadlessFactory struct {
	mu      sync.Mutex
	log     logx.Logger
	windows []*HeadlessWindow
}

func NewHeadlessFactory(log logx.Logger) *HeadlessFactory {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HeadlessFactory{log: log}
}

func (f *HeadlessFactory) NewWindow(opts WindowOptions) (Window, error) {
	w := &HeadlessWindow{
		log:    f.log.With(logx.String("window", opts.Title)),
		opts:   opts,
		bounds: Rect{W: opts.Size.W, H: opts.Size.H},
	}
	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.mu.Unlock()
	return w, nil
}

// Windows lists every window created so far.
func (f *HeadlessFactory) Windows() []*HeadlessWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*HeadlessWindow(nil), f.windows...)
}

// HeadlessTray is an in-memory tray. Click and RightClick simulate the user.
type HeadlessTray struct {
	mu      sync.Mutex
	log     logx.Logger
	tip     string
	bounds  Rect
	onClick func()
	onRight func()
	menu    []MenuItem
}

func NewHeadlessTray(bounds Rect, log logx.Logger) *HeadlessTray {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HeadlessTray{bounds: bounds, log: log}
}

func (t *HeadlessTray) SetToolTip(text string) {
	t.mu.Lock()
	t.tip = text
	t.mu.Unlock()
}

func (t *HeadlessTray) ToolTip() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tip
}

func (t *HeadlessTray) Bounds() Rect {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bounds
}

func (t *HeadlessTray) OnClick(fn func()) {
	t.mu.Lock()
	t.onClick = fn
	t.mu.Unlock()
}

func (t *HeadlessTray) OnRightClick(fn func()) {
	t.mu.Lock()
	t.onRight = fn
	t.mu.Unlock()
}

func (t *HeadlessTray) PopUpContextMenu(items []MenuItem) {
	t.mu.Lock()
	t.menu = append([]MenuItem(nil), items...)
	t.mu.Unlock()
	labels := make([]string, 0, len(items))
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	t.log.Debug("tray menu shown", logx.Any("items", labels))
}

// Menu returns the last popped-up context menu.
func (t *HeadlessTray) Menu() []MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]MenuItem(nil), t.menu...)
}

func (t *HeadlessTray) Click() {
	t.mu.Lock()
	fn := t.onClick
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *HeadlessTray) RightClick() {
	t.mu.Lock()
	fn := t.onRight
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// StaticScreen is a fixed work area.
type StaticScreen Rect

func (s StaticScreen) WorkArea() Rect { return Rect(s) }

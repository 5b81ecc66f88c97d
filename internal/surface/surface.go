// Package surface abstracts the host window manager: windows, the tray icon
// and screen geometry. Headless implementations keep state in memory.
package surface

import "context"

type Rect struct {
	X, Y, W, H int
}

type Size struct {
	W, H int
}

// WindowOptions describe a window at creation time.
type WindowOptions struct {
	Title     string
	Size      Size
	Resizable bool
	Frameless bool
}

type Window interface {
	Show()
	Hide()
	Close()
	IsVisible() bool
	IsClosed() bool
	SetAlwaysOnTop(on bool)
	SetBounds(r Rect)
	Bounds() Rect
	// Load hands content to the window, e.g. the task of a reminder.
	Load(ctx context.Context, content any) error
}

type WindowFactory interface {
	NewWindow(opts WindowOptions) (Window, error)
}

type MenuItem struct {
	Label string
	Click func()
}

type Tray interface {
	SetToolTip(text string)
	ToolTip() string
	Bounds() Rect
	OnClick(fn func())
	OnRightClick(fn func())
	PopUpContextMenu(items []MenuItem)
}

// Screen reports the primary display work area.
type Screen interface {
	WorkArea() Rect
}

const (
	PlatformDarwin = "darwin"
	PlatformWin32  = "win32"
	PlatformLinux  = "linux"
)

// ReminderBounds anchors a reminder window to the right edge of the work
// area. On darwin the tray sits at the top, so the window starts at the tray
// y; elsewhere it ends there.
func ReminderBounds(work, tray Rect, size Size, platform string) Rect {
	y := tray.Y - size.H
	if platform == PlatformDarwin {
		y = tray.Y
	}
	return Rect{X: work.W - size.W, Y: y, W: size.W, H: size.H}
}

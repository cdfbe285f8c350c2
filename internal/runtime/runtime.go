// Package runtime defines the engine-neutral window capability contract.
//
// An engine adapter implements Runtime for the application instance and
// Dispatcher for each live window. Nothing engine-specific crosses this
// boundary: adapters translate their native callbacks into the hook
// interfaces declared in hooks.go.
package runtime

import "log/slog"

// Runtime is one running engine instance.
type Runtime interface {
	// CreateWindow realizes a pending window. It either returns a live,
	// addressable window or fails without leaving anything behind.
	CreateWindow(pending *PendingWindow) (DetachedWindow, error)

	// Run takes over the calling goroutine's thread and processes the event
	// loop until Exit is called or the last window closes.
	Run() error

	// Exit asks the event loop to stop. Safe to call from any goroutine.
	Exit()
}

// Factory constructs an engine instance.
type Factory func(logger *slog.Logger) (Runtime, error)

// Dispatcher is a cloneable handle to one live window. Copies share the same
// underlying window. Every operation is queued onto the engine's event loop
// and returns once queued; operations issued through one dispatcher reach the
// engine in call order. Once the window is gone every call fails with
// ErrDelivery.
type Dispatcher interface {
	// CreateWindow realizes another window from off the event loop.
	CreateWindow(pending *PendingWindow) (DetachedWindow, error)

	SetResizable(resizable bool) error
	SetTitle(title string) error
	Maximize() error
	Unmaximize() error
	Minimize() error
	Unminimize() error
	Show() error
	Hide() error
	Close() error
	SetDecorations(decorations bool) error
	SetAlwaysOnTop(alwaysOnTop bool) error
	SetWidth(width int) error
	SetHeight(height int) error
	Resize(width, height int) error
	// SetMinSize and SetMaxSize accept 0 to clear a bound.
	SetMinSize(width, height int) error
	SetMaxSize(width, height int) error
	SetX(x int) error
	SetY(y int) error
	SetPosition(x, y int) error
	SetFullscreen(fullscreen bool) error
	SetIcon(icon Icon) error

	// EvalScript queues code for execution in the window's script context.
	// Completion is not awaited.
	EvalScript(script string) error
}

// DetachedWindow is a realized window bound to a label.
type DetachedWindow struct {
	Label      string
	Dispatcher Dispatcher
}

// Equal reports whether two windows share a label.
func (w DetachedWindow) Equal(other DetachedWindow) bool {
	return w.Label == other.Label
}

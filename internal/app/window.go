package app

import (
	"sync/atomic"
	"time"

	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/model"
	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// Window is a registered window. Values are shared handles; two Windows are
// the same window iff their labels match.
type Window struct {
	detached  runtime.DetachedWindow
	manager   *Manager
	url       string
	title     string
	createdAt time.Time
	loads     atomic.Int64
}

// Label returns the window label.
func (w *Window) Label() string {
	return w.detached.Label
}

// Dispatcher returns the handle used to operate the window.
func (w *Window) Dispatcher() runtime.Dispatcher {
	return w.detached.Dispatcher
}

// Detached returns the engine-level window.
func (w *Window) Detached() runtime.DetachedWindow {
	return w.detached
}

// Manager returns the owning manager.
func (w *Window) Manager() *Manager {
	return w.manager
}

// Equal reports whether w and other share a label.
func (w *Window) Equal(other *Window) bool {
	if w == nil || other == nil {
		return w == other
	}
	return w.detached.Equal(other.detached)
}

// Info returns a snapshot for the control plane.
func (w *Window) Info() model.WindowInfo {
	return model.WindowInfo{
		Label:     w.Label(),
		URL:       w.url,
		Title:     w.title,
		CreatedAt: w.createdAt.UnixMilli(),
		Loads:     int(w.loads.Load()),
	}
}

// CreateWindow realizes another window through this window's dispatcher.
func (w *Window) CreateWindow(pending *runtime.PendingWindow) (*Window, error) {
	return w.manager.createWindow(pending, w.detached.Dispatcher.CreateWindow)
}

// EvalScript queues script in this window's script context.
func (w *Window) EvalScript(script string) error {
	return w.detached.Dispatcher.EvalScript(script)
}

// Close closes the window.
func (w *Window) Close() error {
	return w.detached.Dispatcher.Close()
}

// Emit sends event to this window's page and to host listeners scoped to it.
func (w *Window) Emit(name string, payload any) error {
	return w.manager.EmitFilter(name, payload, w.Equal)
}

// EmitOthers sends event to every window except this one.
func (w *Window) EmitOthers(name string, payload any) error {
	return w.manager.EmitOthers(w.Label(), name, payload)
}

// Listen registers a host listener for events attributed to this window.
func (w *Window) Listen(name string, h event.Handler) event.HandlerID {
	return w.manager.bus.Listen(name, w.Label(), h)
}

// Once registers a one-shot host listener for events attributed to this window.
func (w *Window) Once(name string, h event.Handler) event.HandlerID {
	return w.manager.bus.Once(name, w.Label(), h)
}

// Trigger fires host listeners only, attributed to this window.
func (w *Window) Trigger(name string, payload any) error {
	return w.manager.Trigger(name, w.Label(), payload)
}

//go:build webview

// Package webview adapts github.com/webview/webview_go to the window
// capability contract.
//
// The native loop is bound to the thread that created the first window, so
// the caller must lock the main goroutine to its OS thread and call Run
// there. Window operations from other goroutines are marshalled onto the loop
// with Dispatch. Operations the library cannot express fail with
// runtime.ErrUnsupported.
package webview

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	webview "github.com/webview/webview_go"

	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// postBinding is the native binding behind window.ipc.postMessage.
const postBinding = "__hostbridge_post"

// ipcShim gives page script the postMessage entry point the bridge expects.
const ipcShim = `window.ipc = { postMessage: function (m) { window.` + postBinding + `(m); } };`

// Engine is a runtime.Runtime backed by native webviews.
type Engine struct {
	logger *slog.Logger
	debug  bool

	running atomic.Bool

	mu      sync.Mutex
	windows map[string]*window
	order   []string // Creation order, the first live entry owns the loop
	exited  bool
}

// New creates an engine. Windows are created on the calling thread until Run
// starts.
func New(logger *slog.Logger, debug bool) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:  logger,
		debug:   debug,
		windows: make(map[string]*window),
	}
}

// NewRuntime is a runtime.Factory.
func NewRuntime(logger *slog.Logger) (runtime.Runtime, error) {
	return New(logger, false), nil
}

// CreateWindow realizes pending. Once the loop is running the native window
// is created on it and this call waits.
func (e *Engine) CreateWindow(pending *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	if err := pending.Consume(); err != nil {
		return runtime.DetachedWindow{}, fmt.Errorf("%w: %w", runtime.ErrCreateWindow, err)
	}

	e.mu.Lock()
	if e.exited {
		e.mu.Unlock()
		return runtime.DetachedWindow{}, fmt.Errorf("%w %q: engine exited", runtime.ErrCreateWindow, pending.Label)
	}
	if _, ok := e.windows[pending.Label]; ok {
		e.mu.Unlock()
		return runtime.DetachedWindow{}, fmt.Errorf("%w: label %q is live", runtime.ErrCreateWindow, pending.Label)
	}
	e.mu.Unlock()

	if !e.running.Load() {
		return e.create(pending)
	}

	owner := e.owner()
	if owner == nil {
		return runtime.DetachedWindow{}, fmt.Errorf("%w %q: no event loop", runtime.ErrCreateWindow, pending.Label)
	}

	type result struct {
		dw  runtime.DetachedWindow
		err error
	}
	done := make(chan result, 1)
	owner.wv.Dispatch(func() {
		dw, err := e.create(pending)
		done <- result{dw, err}
	})
	r := <-done
	return r.dw, r.err
}

// create builds the native window. Must run on the loop thread.
func (e *Engine) create(pending *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	wv := webview.New(e.debug)
	if wv == nil {
		return runtime.DetachedWindow{}, fmt.Errorf("%w %q: %w", runtime.ErrCreateWindow, pending.Label, runtime.ErrCreateRuntime)
	}

	w := &window{
		engine:  e,
		label:   pending.Label,
		wv:      wv,
		attrs:   pending.Attributes,
		invoke:  pending.InvokeHandler,
		onClose: pending.CloseHandler,
	}
	if pending.Protocol != nil {
		srv, err := newAssetServer(pending.Protocol, e.logger)
		if err != nil {
			wv.Destroy()
			return runtime.DetachedWindow{}, fmt.Errorf("%w %q: %w", runtime.ErrCreateWindow, pending.Label, err)
		}
		w.assets = srv
	}
	if err := w.setup(pending.URL); err != nil {
		w.destroy()
		return runtime.DetachedWindow{}, fmt.Errorf("%w %q: %w", runtime.ErrCreateWindow, pending.Label, err)
	}

	e.mu.Lock()
	e.windows[w.label] = w
	e.order = append(e.order, w.label)
	e.mu.Unlock()

	if pending.FileDropHandler != nil {
		e.logger.Debug("file drop not supported by webview engine", "window", w.label)
	}
	e.logger.Debug("webview window created", "window", w.label, "url", pending.URL.String())
	return w.detached(), nil
}

// Run processes the native loop on the calling thread until Exit or until
// the native loop stops on its own.
func (e *Engine) Run() error {
	owner := e.owner()
	if owner == nil {
		return fmt.Errorf("%w: no window to run", runtime.ErrCreateRuntime)
	}
	e.running.Store(true)
	owner.wv.Run()
	e.running.Store(false)

	e.mu.Lock()
	e.exited = true
	remaining := make([]*window, 0, len(e.windows))
	for _, w := range e.windows {
		remaining = append(remaining, w)
	}
	e.windows = make(map[string]*window)
	e.order = nil
	e.mu.Unlock()

	sort.Slice(remaining, func(i, j int) bool { return remaining[i].label < remaining[j].label })
	for _, w := range remaining {
		w.destroy()
	}
	e.logger.Debug("webview engine stopped", "windows", len(remaining))
	return nil
}

// Exit stops the native loop. Safe from any goroutine.
func (e *Engine) Exit() {
	owner := e.owner()
	if owner == nil {
		return
	}
	owner.wv.Terminate()
}

// owner returns the oldest live window, whose handle drives the loop.
func (e *Engine) owner() *window {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, label := range e.order {
		if w, ok := e.windows[label]; ok {
			return w
		}
	}
	return nil
}

// remove deregisters w and reports whether it was the last live window.
func (e *Engine) remove(w *window) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.windows[w.label] == w {
		delete(e.windows, w.label)
	}
	return len(e.windows) == 0
}

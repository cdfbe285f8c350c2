//go:build webview

package webview

import (
	"fmt"
	"sync"

	webview "github.com/webview/webview_go"

	"github.com/jmylchreest/hostbridge/internal/runtime"
)

type window struct {
	engine  *Engine
	label   string
	wv      webview.WebView
	attrs   runtime.Attributes
	invoke  runtime.InvokeHandler
	onClose runtime.CloseHandler
	assets  *assetServer

	mu     sync.Mutex
	closed bool
}

func (w *window) detached() runtime.DetachedWindow {
	return runtime.DetachedWindow{Label: w.label, Dispatcher: dispatcher{w}}
}

// setup applies the initial attributes, installs init scripts and loads the
// first document. Runs on the loop thread.
func (w *window) setup(u runtime.WindowURL) error {
	w.wv.SetTitle(w.attrs.Title)
	w.applySize()

	if err := w.wv.Bind(postBinding, func(raw string) {
		if err := runtime.DeliverInvoke(w.detached(), w.invoke, raw); err != nil {
			w.engine.logger.Debug("rejected page message", "window", w.label, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to bind ipc: %w", err)
	}

	w.wv.Init(ipcShim)
	for _, script := range w.attrs.InitScripts {
		w.wv.Init(script)
	}

	return w.navigate(u)
}

func (w *window) navigate(u runtime.WindowURL) error {
	switch u.Kind {
	case runtime.URLHTML:
		w.wv.SetHtml(u.Value)
	case runtime.URLApp:
		if w.assets == nil {
			return fmt.Errorf("app url %q without a protocol handler", u.Value)
		}
		w.wv.Navigate(w.assets.url(u.Value))
	default:
		w.wv.Navigate(u.Value)
	}
	return nil
}

// applySize maps the size attributes onto webview size hints. A fixed hint
// replaces min and max bounds.
func (w *window) applySize() {
	if !w.attrs.Resizable {
		w.wv.SetSize(w.attrs.Width, w.attrs.Height, webview.HintFixed)
		return
	}
	w.wv.SetSize(w.attrs.Width, w.attrs.Height, webview.HintNone)
	if w.attrs.MinWidth > 0 || w.attrs.MinHeight > 0 {
		w.wv.SetSize(w.attrs.MinWidth, w.attrs.MinHeight, webview.HintMin)
	}
	if w.attrs.MaxWidth > 0 || w.attrs.MaxHeight > 0 {
		w.wv.SetSize(w.attrs.MaxWidth, w.attrs.MaxHeight, webview.HintMax)
	}
}

// destroy tears down the native window and reports it closed once.
func (w *window) destroy() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	if w.assets != nil {
		w.assets.close()
	}
	w.wv.Destroy()
	if w.onClose != nil {
		w.onClose.WindowClosed(w.label)
	}
}

// dispatch queues fn on the loop thread.
func (w *window) dispatch(fn func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return runtime.ErrDelivery
	}
	w.wv.Dispatch(func() {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			fn()
		}
	})
	return nil
}

// dispatcher is the cloneable window handle. Copies share the window.
type dispatcher struct {
	w *window
}

func (d dispatcher) CreateWindow(pending *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	return d.w.engine.CreateWindow(pending)
}

func (d dispatcher) SetResizable(resizable bool) error {
	return d.w.dispatch(func() {
		d.w.attrs.Resizable = resizable
		d.w.applySize()
	})
}

func (d dispatcher) SetTitle(title string) error {
	return d.w.dispatch(func() {
		d.w.attrs.Title = title
		d.w.wv.SetTitle(title)
	})
}

func (d dispatcher) SetWidth(width int) error {
	return d.w.dispatch(func() {
		d.w.attrs.Width = width
		d.w.applySize()
	})
}

func (d dispatcher) SetHeight(height int) error {
	return d.w.dispatch(func() {
		d.w.attrs.Height = height
		d.w.applySize()
	})
}

func (d dispatcher) Resize(width, height int) error {
	return d.w.dispatch(func() {
		d.w.attrs.Width, d.w.attrs.Height = width, height
		d.w.applySize()
	})
}

func (d dispatcher) SetMinSize(width, height int) error {
	return d.w.dispatch(func() {
		d.w.attrs.MinWidth, d.w.attrs.MinHeight = width, height
		d.w.applySize()
	})
}

func (d dispatcher) SetMaxSize(width, height int) error {
	return d.w.dispatch(func() {
		d.w.attrs.MaxWidth, d.w.attrs.MaxHeight = width, height
		d.w.applySize()
	})
}

func (d dispatcher) Close() error {
	return d.w.dispatch(func() {
		if d.w.engine.remove(d.w) {
			d.w.wv.Terminate()
		}
		d.w.destroy()
	})
}

func (d dispatcher) EvalScript(script string) error {
	return d.w.dispatch(func() { d.w.wv.Eval(script) })
}

// The library exposes no native handle operations for these.

func (d dispatcher) Maximize() error            { return d.unsupported("maximize") }
func (d dispatcher) Unmaximize() error          { return d.unsupported("unmaximize") }
func (d dispatcher) Minimize() error            { return d.unsupported("minimize") }
func (d dispatcher) Unminimize() error          { return d.unsupported("unminimize") }
func (d dispatcher) Show() error                { return d.unsupported("show") }
func (d dispatcher) Hide() error                { return d.unsupported("hide") }
func (d dispatcher) SetDecorations(bool) error  { return d.unsupported("setDecorations") }
func (d dispatcher) SetAlwaysOnTop(bool) error  { return d.unsupported("setAlwaysOnTop") }
func (d dispatcher) SetX(int) error             { return d.unsupported("setX") }
func (d dispatcher) SetY(int) error             { return d.unsupported("setY") }
func (d dispatcher) SetPosition(int, int) error { return d.unsupported("setPosition") }
func (d dispatcher) SetFullscreen(bool) error   { return d.unsupported("setFullscreen") }

// SetIcon validates the icon before reporting that it cannot be applied.
func (d dispatcher) SetIcon(icon runtime.Icon) error {
	if _, err := runtime.DecodeIcon(icon); err != nil {
		return err
	}
	return d.unsupported("setIcon")
}

func (d dispatcher) unsupported(op string) error {
	d.w.mu.Lock()
	closed := d.w.closed
	d.w.mu.Unlock()
	if closed {
		return runtime.ErrDelivery
	}
	return fmt.Errorf("%s: %w", op, runtime.ErrUnsupported)
}

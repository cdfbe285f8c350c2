package endpoints

import (
	"context"
	"fmt"

	"github.com/jmylchreest/hostbridge/internal/app"
	"github.com/jmylchreest/hostbridge/internal/config"
	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// target selects the window a Window command applies to. An empty label
// means the calling window.
type target struct {
	Label string `json:"label,omitempty"`
}

type boolArgs struct {
	target
	Value bool `json:"value"`
}

type intArgs struct {
	target
	Value int `json:"value"`
}

type stringArgs struct {
	target
	Value string `json:"value"`
}

type sizeArgs struct {
	target
	Width  int `json:"width"`
	Height int `json:"height"`
}

type positionArgs struct {
	target
	X int `json:"x"`
	Y int `json:"y"`
}

type iconArgs struct {
	target
	Path  string `json:"path,omitempty"`
	Bytes []byte `json:"bytes,omitempty"` // Base64 in JSON
}

type windowModule struct {
	manager *app.Manager
	pending PendingFunc
}

func newWindowModule(m *app.Manager, pending PendingFunc) *module {
	w := &windowModule{manager: m, pending: pending}
	return &module{
		name: ModuleWindow,
		commands: map[string]command{
			"setResizable":   boolOp(w, runtime.Dispatcher.SetResizable),
			"setDecorations": boolOp(w, runtime.Dispatcher.SetDecorations),
			"setAlwaysOnTop": boolOp(w, runtime.Dispatcher.SetAlwaysOnTop),
			"setFullscreen":  boolOp(w, runtime.Dispatcher.SetFullscreen),
			"setTitle":       w.setTitle,
			"maximize":       unitOp(w, runtime.Dispatcher.Maximize),
			"unmaximize":     unitOp(w, runtime.Dispatcher.Unmaximize),
			"minimize":       unitOp(w, runtime.Dispatcher.Minimize),
			"unminimize":     unitOp(w, runtime.Dispatcher.Unminimize),
			"show":           unitOp(w, runtime.Dispatcher.Show),
			"hide":           unitOp(w, runtime.Dispatcher.Hide),
			"close":          unitOp(w, runtime.Dispatcher.Close),
			"setWidth":       intOp(w, runtime.Dispatcher.SetWidth),
			"setHeight":      intOp(w, runtime.Dispatcher.SetHeight),
			"setX":           intOp(w, runtime.Dispatcher.SetX),
			"setY":           intOp(w, runtime.Dispatcher.SetY),
			"resize":         sizeOp(w, runtime.Dispatcher.Resize),
			"setMinSize":     sizeOp(w, runtime.Dispatcher.SetMinSize),
			"setMaxSize":     sizeOp(w, runtime.Dispatcher.SetMaxSize),
			"setPosition":    w.setPosition,
			"setIcon":        w.setIcon,
			"createWebview":  w.createWebview,
		},
	}
}

func (w *windowModule) resolve(msg *app.InvokeMessage, t target) (runtime.Dispatcher, error) {
	if t.Label == "" || t.Label == msg.Window.Label() {
		return msg.Window.Dispatcher(), nil
	}
	win, ok := w.manager.GetWindow(t.Label)
	if !ok {
		return nil, fmt.Errorf("%w: %q", app.ErrWindowNotFound, t.Label)
	}
	return win.Dispatcher(), nil
}

func unitOp(w *windowModule, op func(runtime.Dispatcher) error) command {
	return func(_ context.Context, msg *app.InvokeMessage) (any, error) {
		var args target
		if err := decodeArgs(msg, &args); err != nil {
			return nil, err
		}
		d, err := w.resolve(msg, args)
		if err != nil {
			return nil, err
		}
		return nil, op(d)
	}
}

func boolOp(w *windowModule, op func(runtime.Dispatcher, bool) error) command {
	return func(_ context.Context, msg *app.InvokeMessage) (any, error) {
		var args boolArgs
		if err := msg.Decode(&args); err != nil {
			return nil, err
		}
		d, err := w.resolve(msg, args.target)
		if err != nil {
			return nil, err
		}
		return nil, op(d, args.Value)
	}
}

func intOp(w *windowModule, op func(runtime.Dispatcher, int) error) command {
	return func(_ context.Context, msg *app.InvokeMessage) (any, error) {
		var args intArgs
		if err := msg.Decode(&args); err != nil {
			return nil, err
		}
		d, err := w.resolve(msg, args.target)
		if err != nil {
			return nil, err
		}
		return nil, op(d, args.Value)
	}
}

func sizeOp(w *windowModule, op func(runtime.Dispatcher, int, int) error) command {
	return func(_ context.Context, msg *app.InvokeMessage) (any, error) {
		var args sizeArgs
		if err := msg.Decode(&args); err != nil {
			return nil, err
		}
		d, err := w.resolve(msg, args.target)
		if err != nil {
			return nil, err
		}
		return nil, op(d, args.Width, args.Height)
	}
}

func (w *windowModule) setTitle(_ context.Context, msg *app.InvokeMessage) (any, error) {
	var args stringArgs
	if err := msg.Decode(&args); err != nil {
		return nil, err
	}
	d, err := w.resolve(msg, args.target)
	if err != nil {
		return nil, err
	}
	return nil, d.SetTitle(args.Value)
}

func (w *windowModule) setPosition(_ context.Context, msg *app.InvokeMessage) (any, error) {
	var args positionArgs
	if err := msg.Decode(&args); err != nil {
		return nil, err
	}
	d, err := w.resolve(msg, args.target)
	if err != nil {
		return nil, err
	}
	return nil, d.SetPosition(args.X, args.Y)
}

func (w *windowModule) setIcon(_ context.Context, msg *app.InvokeMessage) (any, error) {
	var args iconArgs
	if err := msg.Decode(&args); err != nil {
		return nil, err
	}
	d, err := w.resolve(msg, args.target)
	if err != nil {
		return nil, err
	}

	var icon runtime.Icon
	switch {
	case len(args.Bytes) > 0:
		icon = runtime.IconFromBytes(args.Bytes)
	case args.Path != "":
		icon = runtime.IconFromFile(args.Path)
	default:
		return nil, missingArg("path")
	}
	return nil, d.SetIcon(icon)
}

type createResult struct {
	Label string `json:"label"`
}

// createWebview opens a window from page script. It goes through the
// calling window's dispatcher since handlers run off the event loop.
func (w *windowModule) createWebview(_ context.Context, msg *app.InvokeMessage) (any, error) {
	wc := config.WindowConfig{Title: config.DefaultWindowTitle}
	if err := msg.Decode(&wc); err != nil {
		return nil, err
	}
	if wc.Label == "" {
		return nil, missingArg("label")
	}
	wc.ApplyDefaults()
	if err := wc.Validate(); err != nil {
		return nil, err
	}

	win, err := msg.Window.CreateWindow(w.pending(wc))
	if err != nil {
		return nil, err
	}
	return createResult{Label: win.Label()}, nil
}

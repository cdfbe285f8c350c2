package headless

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// State is the observable condition of a headless window.
type State struct {
	URL         string
	Title       string
	Width       int
	Height      int
	MinWidth    int
	MinHeight   int
	MaxWidth    int
	MaxHeight   int
	X           int
	Y           int
	Resizable   bool
	Visible     bool
	Decorations bool
	Maximized   bool
	Minimized   bool
	Fullscreen  bool
	AlwaysOnTop bool
	Transparent bool
	Icon        *runtime.DecodedIcon
	Loads       int // Script contexts created
}

// window is owned by the event loop except for closing, which is guarded
// by the engine's mu, and the logs, which have their own lock.
type window struct {
	engine *Engine
	label  string
	url    runtime.WindowURL

	initScripts []string
	invoke      runtime.InvokeHandler
	fileDrop    runtime.FileDropHandler
	protocol    *runtime.CustomProtocol
	onClose     runtime.CloseHandler

	closing bool

	state  State
	vm     *goja.Runtime
	timers map[int64]*time.Timer
	nextID int64

	logMu   sync.Mutex
	ops     []string
	console []string
}

func newWindow(e *Engine, p *runtime.PendingWindow) (*window, error) {
	if strings.TrimSpace(p.Label) == "" {
		return nil, fmt.Errorf("label must not be empty")
	}

	attrs := p.Attributes
	state := State{
		Title:       attrs.Title,
		Width:       attrs.Width,
		Height:      attrs.Height,
		MinWidth:    attrs.MinWidth,
		MinHeight:   attrs.MinHeight,
		MaxWidth:    attrs.MaxWidth,
		MaxHeight:   attrs.MaxHeight,
		Resizable:   attrs.Resizable,
		Visible:     attrs.Visible,
		Decorations: attrs.Decorations,
		Maximized:   attrs.Maximized,
		Fullscreen:  attrs.Fullscreen,
		AlwaysOnTop: attrs.AlwaysOnTop,
		Transparent: attrs.Transparent,
	}
	if attrs.X != nil {
		state.X = *attrs.X
	}
	if attrs.Y != nil {
		state.Y = *attrs.Y
	}
	if attrs.Icon != nil {
		icon, err := runtime.DecodeIcon(*attrs.Icon)
		if err != nil {
			return nil, err
		}
		state.Icon = &icon
	}
	state.clamp()

	return &window{
		engine:      e,
		label:       p.Label,
		url:         p.URL,
		initScripts: append([]string(nil), attrs.InitScripts...),
		invoke:      p.InvokeHandler,
		fileDrop:    p.FileDropHandler,
		protocol:    p.Protocol,
		onClose:     p.CloseHandler,
		state:       state,
		timers:      make(map[int64]*time.Timer),
	}, nil
}

func (w *window) detached() runtime.DetachedWindow {
	return runtime.DetachedWindow{Label: w.label, Dispatcher: &dispatcher{w: w}}
}

// clamp applies the size bounds.
func (s *State) clamp() {
	if s.MinWidth > 0 && s.Width < s.MinWidth {
		s.Width = s.MinWidth
	}
	if s.MinHeight > 0 && s.Height < s.MinHeight {
		s.Height = s.MinHeight
	}
	if s.MaxWidth > 0 && s.Width > s.MaxWidth {
		s.Width = s.MaxWidth
	}
	if s.MaxHeight > 0 && s.Height > s.MaxHeight {
		s.Height = s.MaxHeight
	}
}

func (w *window) recordOp(op string) {
	w.logMu.Lock()
	defer w.logMu.Unlock()
	w.ops = append(w.ops, op)
}

func (w *window) recordConsole(line string) {
	w.logMu.Lock()
	defer w.logMu.Unlock()
	w.console = append(w.console, line)
}

// destroy tears down the script context and tells the close hook. Runs on
// the loop.
func (w *window) destroy() {
	w.stopTimers()
	w.vm = nil
	w.recordOp("destroyed")
	if w.onClose != nil {
		w.onClose.WindowClosed(w.label)
	}
}

// dispatcher is the runtime.Dispatcher of a headless window. Copies share
// the window.
type dispatcher struct {
	w *window
}

// apply queues a state change recorded as op.
func (d *dispatcher) apply(op string, fn func(s *State)) error {
	w := d.w
	return w.engine.enqueue(w, func() {
		fn(&w.state)
		w.recordOp(op)
	})
}

func (d *dispatcher) CreateWindow(pending *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	return d.w.engine.CreateWindow(pending)
}

func (d *dispatcher) SetResizable(v bool) error {
	return d.apply(fmt.Sprintf("setResizable %t", v), func(s *State) { s.Resizable = v })
}

func (d *dispatcher) SetTitle(title string) error {
	return d.apply("setTitle "+title, func(s *State) { s.Title = title })
}

func (d *dispatcher) Maximize() error {
	return d.apply("maximize", func(s *State) { s.Maximized, s.Minimized = true, false })
}

func (d *dispatcher) Unmaximize() error {
	return d.apply("unmaximize", func(s *State) { s.Maximized = false })
}

func (d *dispatcher) Minimize() error {
	return d.apply("minimize", func(s *State) { s.Minimized = true })
}

func (d *dispatcher) Unminimize() error {
	return d.apply("unminimize", func(s *State) { s.Minimized = false })
}

func (d *dispatcher) Show() error {
	return d.apply("show", func(s *State) { s.Visible = true })
}

func (d *dispatcher) Hide() error {
	return d.apply("hide", func(s *State) { s.Visible = false })
}

func (d *dispatcher) Close() error {
	return d.w.engine.enqueueClose(d.w)
}

func (d *dispatcher) SetDecorations(v bool) error {
	return d.apply(fmt.Sprintf("setDecorations %t", v), func(s *State) { s.Decorations = v })
}

func (d *dispatcher) SetAlwaysOnTop(v bool) error {
	return d.apply(fmt.Sprintf("setAlwaysOnTop %t", v), func(s *State) { s.AlwaysOnTop = v })
}

func (d *dispatcher) SetWidth(width int) error {
	return d.apply(fmt.Sprintf("setWidth %d", width), func(s *State) {
		s.Width = width
		s.clamp()
	})
}

func (d *dispatcher) SetHeight(height int) error {
	return d.apply(fmt.Sprintf("setHeight %d", height), func(s *State) {
		s.Height = height
		s.clamp()
	})
}

func (d *dispatcher) Resize(width, height int) error {
	return d.apply(fmt.Sprintf("resize %dx%d", width, height), func(s *State) {
		s.Width, s.Height = width, height
		s.clamp()
	})
}

func (d *dispatcher) SetMinSize(width, height int) error {
	return d.apply(fmt.Sprintf("setMinSize %dx%d", width, height), func(s *State) {
		s.MinWidth, s.MinHeight = width, height
		s.clamp()
	})
}

func (d *dispatcher) SetMaxSize(width, height int) error {
	return d.apply(fmt.Sprintf("setMaxSize %dx%d", width, height), func(s *State) {
		s.MaxWidth, s.MaxHeight = width, height
		s.clamp()
	})
}

func (d *dispatcher) SetX(x int) error {
	return d.apply(fmt.Sprintf("setX %d", x), func(s *State) { s.X = x })
}

func (d *dispatcher) SetY(y int) error {
	return d.apply(fmt.Sprintf("setY %d", y), func(s *State) { s.Y = y })
}

func (d *dispatcher) SetPosition(x, y int) error {
	return d.apply(fmt.Sprintf("setPosition %d,%d", x, y), func(s *State) { s.X, s.Y = x, y })
}

func (d *dispatcher) SetFullscreen(v bool) error {
	return d.apply(fmt.Sprintf("setFullscreen %t", v), func(s *State) { s.Fullscreen = v })
}

// SetIcon decodes icon before queuing so an undecodable icon fails the call.
func (d *dispatcher) SetIcon(icon runtime.Icon) error {
	decoded, err := runtime.DecodeIcon(icon)
	if err != nil {
		return err
	}
	op := fmt.Sprintf("setIcon %s %dx%d", decoded.Format, decoded.Width, decoded.Height)
	return d.apply(op, func(s *State) { s.Icon = &decoded })
}

func (d *dispatcher) EvalScript(script string) error {
	w := d.w
	return w.engine.enqueue(w, func() { w.eval(script) })
}

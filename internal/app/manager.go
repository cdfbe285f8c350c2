// Package app owns the live windows of an application and routes calls and
// events between host code and page script.
package app

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/model"
	"github.com/jmylchreest/hostbridge/internal/observability"
	"github.com/jmylchreest/hostbridge/internal/plugin"
	"github.com/jmylchreest/hostbridge/internal/runtime"
	"github.com/jmylchreest/hostbridge/internal/salt"
	"github.com/jmylchreest/hostbridge/internal/worker"
)

// PackageInfo identifies the running application.
type PackageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Observer is told about window lifecycle and emitted events.
// Methods are called outside the manager's lock.
type Observer interface {
	WindowCreated(info model.WindowInfo)
	WindowClosed(label string)
	EventEmitted(record model.EventRecord)
}

// PageLoadHandler runs each time a window's script context becomes ready.
type PageLoadHandler func(w *Window, payload ipc.PageLoadPayload)

// Options configures a Manager. Nil fields get defaults.
type Options struct {
	Logger  *slog.Logger
	Salts   *salt.Registry
	Bus     *event.Bus
	Pool    *worker.Pool
	Plugins *plugin.Store
	Package PackageInfo
}

// Manager owns the label to window registry.
//
// mu guards windows, reserved, and the handler tables. A label is reserved
// under mu before the engine is asked to realize it, so two concurrent
// creations of one label cannot both succeed. Engine calls and callbacks run
// outside mu.
type Manager struct {
	rt      runtime.Runtime
	logger  *slog.Logger
	salts   *salt.Registry
	bus     *event.Bus
	pool    *worker.Pool
	plugins *plugin.Store
	pkg     PackageInfo
	names   ipc.FunctionNames
	bridge  string

	mu            sync.RWMutex
	windows       map[string]*Window
	reserved      map[string]struct{}
	invokeHandler InvokeHandler
	endpoints     map[string]InvokeHandler
	pageLoad      []PageLoadHandler
	observers     []Observer
}

// NewManager creates a manager driving rt.
func NewManager(rt runtime.Runtime, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Salts == nil {
		opts.Salts = salt.NewRegistry(0)
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.Pool == nil {
		opts.Pool = worker.NewPool(4, opts.Logger)
	}
	if opts.Plugins == nil {
		opts.Plugins = plugin.NewStore()
	}

	names := ipc.NewFunctionNames()
	bridge, err := ipc.BridgeScript(names)
	if err != nil {
		return nil, err
	}

	return &Manager{
		rt:        rt,
		logger:    opts.Logger,
		salts:     opts.Salts,
		bus:       opts.Bus,
		pool:      opts.Pool,
		plugins:   opts.Plugins,
		pkg:       opts.Package,
		names:     names,
		bridge:    bridge,
		windows:   make(map[string]*Window),
		reserved:  make(map[string]struct{}),
		endpoints: make(map[string]InvokeHandler),
	}, nil
}

// Package returns the application identity.
func (m *Manager) Package() PackageInfo {
	return m.pkg
}

// Bus returns the host-side event bus.
func (m *Manager) Bus() *event.Bus {
	return m.bus
}

// Plugins returns the plugin store.
func (m *Manager) Plugins() *plugin.Store {
	return m.plugins
}

// SetInvokeHandler sets the handler for commands that name neither a module
// nor a plugin. A later call replaces the earlier handler.
func (m *Manager) SetInvokeHandler(h InvokeHandler) {
	m.mu.Lock()
	replaced := m.invokeHandler != nil
	m.invokeHandler = h
	m.mu.Unlock()

	if replaced {
		m.logger.Warn("global invoke handler replaced")
	}
}

// RegisterEndpoint sets the first-party handler for module.
func (m *Manager) RegisterEndpoint(module string, h InvokeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[module] = h
}

// RegisterPlugin adds a plugin. Its init script is installed in windows
// created afterwards.
func (m *Manager) RegisterPlugin(p plugin.Plugin) error {
	return m.plugins.Register(p)
}

// OnPageLoad adds a handler run after every page load.
func (m *Manager) OnPageLoad(h PageLoadHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageLoad = append(m.pageLoad, h)
}

// AddObserver registers o for lifecycle and event notifications.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Manager) observerSnapshot() []Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Observer(nil), m.observers...)
}

// CreateWindow realizes pending through the engine instance.
func (m *Manager) CreateWindow(pending *runtime.PendingWindow) (*Window, error) {
	return m.createWindow(pending, m.rt.CreateWindow)
}

// createWindow reserves the label, realizes the window with create and
// registers it. On failure the reservation is released and nothing is left
// registered.
func (m *Manager) createWindow(pending *runtime.PendingWindow, create func(*runtime.PendingWindow) (runtime.DetachedWindow, error)) (*Window, error) {
	if pending == nil || strings.TrimSpace(pending.Label) == "" {
		return nil, fmt.Errorf("%w: %w", runtime.ErrCreateWindow, ErrEmptyLabel)
	}
	label := pending.Label

	m.mu.Lock()
	if _, ok := m.windows[label]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrLabelExists, label)
	}
	if _, ok := m.reserved[label]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrLabelExists, label)
	}
	m.reserved[label] = struct{}{}
	m.mu.Unlock()

	m.prepare(pending)

	detached, err := create(pending)
	if err != nil {
		m.mu.Lock()
		delete(m.reserved, label)
		m.mu.Unlock()
		return nil, fmt.Errorf("%w %q: %w", runtime.ErrCreateWindow, label, err)
	}

	w := &Window{
		detached:  detached,
		manager:   m,
		url:       pending.URL.String(),
		title:     pending.Attributes.Title,
		createdAt: time.Now(),
	}

	m.mu.Lock()
	delete(m.reserved, label)
	m.windows[label] = w
	count := len(m.windows)
	m.mu.Unlock()

	observability.SetWindowsOpen(count)
	m.plugins.Created(label)
	info := w.Info()
	for _, o := range m.observerSnapshot() {
		o.WindowCreated(info)
	}
	m.logger.Info("window created", "window", label, "url", info.URL)
	return w, nil
}

// prepare binds the manager's hooks and installs the bridge ahead of any
// other init script.
func (m *Manager) prepare(pending *runtime.PendingWindow) {
	scripts := append([]string{m.bridge}, m.plugins.InitScripts()...)
	pending.Attributes = pending.Attributes.WithInitScriptsFirst(scripts...)
	pending.InvokeHandler = m
	pending.CloseHandler = m
}

// WindowClosed deregisters label. Called by the engine once the window is gone.
func (m *Manager) WindowClosed(label string) {
	m.mu.Lock()
	_, ok := m.windows[label]
	delete(m.windows, label)
	count := len(m.windows)
	m.mu.Unlock()

	if !ok {
		return
	}

	m.salts.RevokeWindow(label)
	m.bus.Clear(label)
	observability.SetWindowsOpen(count)
	for _, o := range m.observerSnapshot() {
		o.WindowClosed(label)
	}
	m.logger.Info("window closed", "window", label)
}

// GetWindow returns the window registered under label.
func (m *Manager) GetWindow(label string) (*Window, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.windows[label]
	return w, ok
}

// Windows returns all registered windows sorted by label.
func (m *Manager) Windows() []*Window {
	m.mu.RLock()
	out := make([]*Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out
}

// GenerateSalt mints a single-use salt for window.
func (m *Manager) GenerateSalt(window string) string {
	observability.RecordSalt("issued")
	return m.salts.Generate(window)
}

// GenerateEventSalt mints the salt an emitted event carries to window.
// Page loads do not revoke it.
func (m *Manager) GenerateEventSalt(window string) string {
	observability.RecordSalt("issued")
	return m.salts.GenerateEvent(window)
}

// VerifySalt consumes salt if it was minted for window and is still live.
func (m *Manager) VerifySalt(window, s string) bool {
	ok := m.salts.VerifyFor(window, s)
	if ok {
		observability.RecordSalt("accepted")
	} else {
		observability.RecordSalt("rejected")
	}
	return ok
}

// Close stops the worker pool, waiting for running handlers.
func (m *Manager) Close() {
	m.pool.Close()
}

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/hostbridge/internal/config"
	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/plugin"
	"github.com/jmylchreest/hostbridge/internal/runtime"
	"github.com/jmylchreest/hostbridge/internal/salt"
	"github.com/jmylchreest/hostbridge/internal/worker"
)

// AssetScheme is the URL scheme application routes are served under.
const AssetScheme = "app"

// Events emitted to a window for OS file drops.
const (
	EventFileDrop          = "hostbridge://file-drop"
	EventFileDropHover     = "hostbridge://file-drop-hover"
	EventFileDropCancelled = "hostbridge://file-drop-cancelled"
)

// ErrAppRunning is returned by Run when the app is already running.
var ErrAppRunning = errors.New("app is already running")

// AppOptions configures an App.
type AppOptions struct {
	// ConfigPath is the file cfg was loaded from; dist_dir is resolved
	// against it.
	ConfigPath string
	Logger     *slog.Logger
	// Dev loads application routes from build.dev_path instead of dist_dir.
	Dev bool
}

// App ties a configuration, an engine instance and a manager together.
type App struct {
	cfg     *config.Config
	rt      runtime.Runtime
	manager *Manager
	logger  *slog.Logger
	distDir string
	dev     bool

	running   atomic.Bool
	closeOnce sync.Once
}

// NewApp builds the manager and its registries from cfg.
func NewApp(cfg *config.Config, rt runtime.Runtime, opts AppOptions) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	manager, err := NewManager(rt, Options{
		Logger:  opts.Logger,
		Salts:   salt.NewRegistry(cfg.Security.SaltTTL.Duration()),
		Bus:     event.NewBus(),
		Pool:    worker.NewPool(cfg.Runtime.Workers, opts.Logger),
		Plugins: plugin.NewStore(),
		Package: PackageInfo{
			Name:    cfg.Package.ProductName,
			Version: cfg.Package.Version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	return &App{
		cfg:     cfg,
		rt:      rt,
		manager: manager,
		logger:  opts.Logger,
		distDir: cfg.ResolveDistDir(opts.ConfigPath),
		dev:     opts.Dev,
	}, nil
}

// Manager returns the window manager.
func (a *App) Manager() *Manager {
	return a.manager
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// DistDir returns the resolved frontend asset directory.
func (a *App) DistDir() string {
	return a.distDir
}

// PendingWindow builds a pending window from a window config with the
// app's asset protocol and file-drop handling attached.
func (a *App) PendingWindow(wc config.WindowConfig) *runtime.PendingWindow {
	u := runtime.URLFromConfig(wc)
	if a.dev && u.Kind == runtime.URLApp {
		u = runtime.ExternalURL(strings.TrimSuffix(a.cfg.Build.DevPath, "/") + "/" + u.Value)
	}

	pending := runtime.NewPendingWindow(wc.Label, u, runtime.AttributesFromConfig(wc))
	pending.Protocol = a.AssetProtocol()
	pending.FileDropHandler = runtime.FileDropHandlerFunc(a.handleFileDrop)
	return pending
}

// CreateWindows realizes every configured window.
func (a *App) CreateWindows() error {
	for _, wc := range a.cfg.Windows {
		if _, err := a.manager.CreateWindow(a.PendingWindow(wc)); err != nil {
			return err
		}
	}
	return nil
}

// Run initializes plugins, creates the configured windows and blocks on the
// engine's event loop. The manager is closed when Run returns.
func (a *App) Run() error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAppRunning
	}
	defer a.Close()

	configs, err := a.pluginConfigs()
	if err != nil {
		return err
	}
	if err := a.manager.Plugins().Initialize(configs); err != nil {
		return err
	}
	if err := a.CreateWindows(); err != nil {
		return err
	}

	a.logger.Info("app running",
		"name", a.cfg.Package.ProductName,
		"version", a.cfg.Package.Version,
		"windows", len(a.cfg.Windows))
	return a.rt.Run()
}

// Exit asks the engine to stop.
func (a *App) Exit() {
	a.rt.Exit()
}

// Close stops handler execution. Safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(a.manager.Close)
}

// Reload asks every window to reload its document.
func (a *App) Reload() error {
	var errs []error
	for _, w := range a.manager.Windows() {
		if err := w.EvalScript("window.location.reload()"); err != nil {
			errs = append(errs, fmt.Errorf("window %q: %w", w.Label(), err))
		}
	}
	return errors.Join(errs...)
}

// AssetProtocol serves application routes from the dist directory.
func (a *App) AssetProtocol() *runtime.CustomProtocol {
	return &runtime.CustomProtocol{
		Scheme:  AssetScheme,
		Handler: runtime.ProtocolHandlerFunc(a.serveAsset),
	}
}

func (a *App) serveAsset(raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != AssetScheme {
		return nil, runtime.ErrNotHandled
	}

	name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if name == "" {
		name = "index.html"
	}
	if !fs.ValidPath(name) {
		return nil, runtime.ErrNotHandled
	}

	data, err := fs.ReadFile(os.DirFS(a.distDir), name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, runtime.ErrNotHandled
		}
		return nil, fmt.Errorf("failed to read asset %q: %w", name, err)
	}
	return data, nil
}

// handleFileDrop forwards OS file drops to the window's page.
func (a *App) handleFileDrop(dw runtime.DetachedWindow, ev runtime.FileDropEvent) bool {
	w, ok := a.manager.GetWindow(dw.Label)
	if !ok {
		return false
	}

	var (
		name    string
		payload any
	)
	switch ev.Kind {
	case runtime.FileDropHovered:
		name, payload = EventFileDropHover, ev.Paths
	case runtime.FileDropDropped:
		name, payload = EventFileDrop, ev.Paths
	case runtime.FileDropCancelled:
		name = EventFileDropCancelled
	default:
		return false
	}

	if err := w.Emit(name, payload); err != nil {
		a.logger.Warn("failed to emit file drop", "window", dw.Label, "kind", ev.Kind.String(), "error", err)
	}
	return true
}

func (a *App) pluginConfigs() (map[string]json.RawMessage, error) {
	configs := make(map[string]json.RawMessage, len(a.cfg.Plugins))
	for name, settings := range a.cfg.Plugins {
		data, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config for plugin %q: %w", name, err)
		}
		configs[name] = data
	}
	return configs, nil
}

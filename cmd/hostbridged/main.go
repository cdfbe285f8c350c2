// Package main is the entry point for the hostbridged application host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	goruntime "runtime"
	"syscall"
	"time"

	"github.com/jmylchreest/hostbridge/internal/app"
	"github.com/jmylchreest/hostbridge/internal/config"
	"github.com/jmylchreest/hostbridge/internal/dbus"
	"github.com/jmylchreest/hostbridge/internal/endpoints"
	"github.com/jmylchreest/hostbridge/internal/observability"
	"github.com/jmylchreest/hostbridge/internal/runtime"
	"github.com/jmylchreest/hostbridge/internal/runtime/headless"
	"github.com/jmylchreest/hostbridge/internal/store"
	"github.com/jmylchreest/hostbridge/internal/theme"
	"github.com/jmylchreest/hostbridge/internal/watch"
)

var (
	// Build-time variables
	version = "dev"
)

// engines maps [runtime] engine names to constructors. Engines behind build
// tags register themselves from init.
var engines = map[string]func(cfg *config.Config, logger *slog.Logger) (runtime.Runtime, error){
	config.EngineHeadless: func(_ *config.Config, logger *slog.Logger) (runtime.Runtime, error) {
		return headless.NewRuntime(logger)
	},
}

func init() {
	// Native engines must own the main thread.
	goruntime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "Path to hostbridge.toml (default: "+config.ConfigPath()+")")
	engine := flag.String("engine", "", "Engine to run, overriding [runtime] engine")
	debug := flag.Bool("debug", false, "Enable debug logging and engine devtools")
	dev := flag.Bool("dev", false, "Load application routes from build.dev_path")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("hostbridged version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath, *engine, *debug, *dev, logger); err != nil {
		logger.Error("hostbridged failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, engine string, debug, dev bool, logger *slog.Logger) error {
	logger.Info("starting hostbridged", "version", version)

	if configPath == "" {
		configPath = config.ConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if engine != "" {
		cfg.Runtime.Engine = engine
	}
	if debug {
		cfg.Runtime.Debug = true
	}

	newEngine, ok := engines[cfg.Runtime.Engine]
	if !ok {
		return fmt.Errorf("engine %q is not available in this build", cfg.Runtime.Engine)
	}
	rt, err := newEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start %s engine: %w", cfg.Runtime.Engine, err)
	}

	application, err := app.NewApp(cfg, rt, app.AppOptions{
		ConfigPath: configPath,
		Logger:     logger,
		Dev:        dev,
	})
	if err != nil {
		return err
	}
	defer application.Close()

	manager := application.Manager()
	endpoints.Register(manager, endpoints.Options{Pending: application.PendingWindow})

	if _, ok := cfg.Plugins[theme.PluginName]; ok {
		themes := theme.New(manager, logger)
		if err := manager.RegisterPlugin(themes); err != nil {
			return err
		}
		defer themes.Close()
	}

	events, closeEvents, err := openEventStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()
	manager.AddObserver(store.NewRecorder(events, logger))

	if cfg.Control.DBus {
		server := dbus.NewServer(dbus.ManagerBridge(manager), events, logger)
		if err := server.Start(); err != nil {
			// The app still runs without its control plane.
			logger.Warn("failed to start D-Bus control service", "error", err)
		} else {
			manager.AddObserver(server)
			defer func() {
				if err := server.Stop(); err != nil {
					logger.Warn("error stopping D-Bus control service", "error", err)
				}
			}()
		}
	}

	if cfg.Control.MetricsAddr != "" {
		stop := serveMetrics(cfg.Control.MetricsAddr, logger)
		defer stop()
	}

	if cfg.Build.Watch && !dev {
		watcher, err := watch.NewDistWatcher(application.DistDir(), func() {
			if err := application.Reload(); err != nil {
				logger.Warn("failed to reload windows", "error", err)
			}
		}, logger)
		if err != nil {
			logger.Warn("failed to watch dist directory", "path", application.DistDir(), "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.Warn("failed to watch dist directory", "path", application.DistDir(), "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		logger.Info("received signal, shutting down", "signal", sig)
		application.Exit()
	}()

	if err := application.Run(); err != nil {
		return err
	}
	logger.Info("hostbridged stopped")
	return nil
}

// openEventStore builds the recent-event store, journaled to disk when
// [control] journal is on.
func openEventStore(cfg *config.Config, logger *slog.Logger) (*store.Store, func(), error) {
	if !cfg.Control.Journal {
		s := store.NewStore(store.DefaultCapacity, nil)
		return s, func() { _ = s.Close() }, nil
	}

	path := cfg.Control.JournalPath
	if path == "" {
		path = config.JournalPath()
	}
	journal, err := store.OpenJournal(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event journal: %w", err)
	}

	s := store.NewStore(store.DefaultCapacity, journal)
	if err := s.Hydrate(); err != nil {
		logger.Warn("failed to hydrate event store", "error", err)
	}
	logger.Info("event journal opened", "path", journal.Path(), "count", s.Count())

	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("error closing event store", "error", err)
		}
	}, nil
}

// serveMetrics exposes /metrics on addr and returns a shutdown function.
func serveMetrics(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

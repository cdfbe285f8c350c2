package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jmylchreest/hostbridge/internal/config"
	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/plugin"
)

// PluginName is the namespace page script calls the plugin under.
const PluginName = "theme"

// EventChanged is emitted to every window when the stylesheet changes.
const EventChanged = "hostbridge://theme-changed"

// StyleElementID is the id of the injected <style> element.
const StyleElementID = "hostbridge-theme"

// Emitter delivers events to every open window.
type Emitter interface {
	Emit(name string, payload any) error
}

// Settings is the [plugins.theme] configuration table.
type Settings struct {
	Name         string          `json:"name"`          // Theme to load; default when empty
	Dir          string          `json:"dir"`           // User themes directory; ThemesDir() when empty
	Watch        bool            `json:"watch"`         // Hot-reload user theme files
	PollInterval config.Duration `json:"poll_interval"` // Watch polling interval
}

// Stylesheet is the payload of EventChanged and the result of "current".
type Stylesheet struct {
	Name string `json:"name"`
	CSS  string `json:"css"`
}

// Plugin injects the active theme into every window and pushes updates to
// open windows when the theme is switched or its file changes.
type Plugin struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	emitter  Emitter
	settings Settings
	theme    *Theme
	watcher  *Watcher
}

var (
	_ plugin.Plugin      = (*Plugin)(nil)
	_ plugin.Initializer = (*Plugin)(nil)
)

// New creates the plugin with the default theme loaded. emitter may be nil
// when no windows need live updates.
func New(emitter Emitter, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{
		logger:  logger,
		emitter: emitter,
		theme:   NewDefaultTheme(),
	}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return PluginName }

// Initialize loads the configured theme and starts the watcher if asked to.
func (p *Plugin) Initialize(raw json.RawMessage) error {
	var s Settings
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("failed to decode theme settings: %w", err)
		}
	}
	if s.Dir == "" {
		if dir, err := ThemesDir(); err == nil {
			s.Dir = dir
		} else {
			p.logger.Warn("failed to get themes directory", "error", err)
		}
	}

	t, err := Resolve(s.Name, s.Dir)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.settings = s
	p.theme = t
	p.mu.Unlock()

	p.logger.Info("loaded theme", "name", t.Name, "path", t.Path, "bundled", t.IsBundled)
	p.restartWatcher(t)
	return nil
}

// Current returns the active stylesheet.
func (p *Plugin) Current() Stylesheet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stylesheet{Name: p.theme.Name, CSS: p.theme.CSS}
}

// Set switches to the named theme and pushes it to open windows.
func (p *Plugin) Set(name string) (Stylesheet, error) {
	p.mu.RLock()
	dir := p.settings.Dir
	p.mu.RUnlock()

	t, err := Resolve(name, dir)
	if err != nil {
		return Stylesheet{}, err
	}

	p.mu.Lock()
	p.theme = t
	p.mu.Unlock()

	p.logger.Info("switched theme", "name", t.Name, "path", t.Path)
	p.restartWatcher(t)

	sheet := Stylesheet{Name: t.Name, CSS: t.CSS}
	return sheet, p.broadcast(sheet)
}

// List returns the themes that Set accepts.
func (p *Plugin) List() ([]ThemeInfo, error) {
	p.mu.RLock()
	dir := p.settings.Dir
	p.mu.RUnlock()
	return ListAvailableThemes(dir)
}

// Close stops the watcher.
func (p *Plugin) Close() {
	p.mu.Lock()
	w := p.watcher
	p.watcher = nil
	p.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// ExtendAPI implements plugin.Plugin. Commands: current, list, set.
func (p *Plugin) ExtendAPI(_ context.Context, call plugin.Call) (any, error) {
	switch call.Command() {
	case "current":
		return p.Current(), nil
	case "list":
		return p.List()
	case "set":
		var args struct {
			Name string `json:"name"`
		}
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		sheet, err := p.Set(args.Name)
		if err != nil {
			return nil, err
		}
		return Stylesheet{Name: sheet.Name}, nil
	default:
		return nil, ipc.CommandNotFound("theme command", call.Command())
	}
}

// InitScript implements plugin.Plugin. It installs the active stylesheet and
// a listener that swaps it when EventChanged arrives.
func (p *Plugin) InitScript() string {
	sheet, err := json.Marshal(p.Current())
	if err != nil {
		return ""
	}

	r := strings.NewReplacer(
		"{{sheet}}", string(sheet),
		"{{id}}", StyleElementID,
		"{{event}}", EventChanged,
	)
	return r.Replace(initScript)
}

const initScript = `(function () {
  var state = {{sheet}};
  window.__HOSTBRIDGE_THEME__ = state;

  function apply() {
    if (typeof document === 'undefined' || !document.createElement) {
      return;
    }
    var el = document.getElementById('{{id}}');
    if (!el) {
      el = document.createElement('style');
      el.id = '{{id}}';
      (document.head || document.documentElement).appendChild(el);
    }
    el.textContent = state.css;
  }

  if (typeof document !== 'undefined' && document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', apply);
  } else {
    apply();
  }

  window.__HOSTBRIDGE__.listen('{{event}}', function (e) {
    state.name = e.payload.name;
    state.css = e.payload.css;
    apply();
  });
})();`

func (p *Plugin) broadcast(sheet Stylesheet) error {
	if p.emitter == nil {
		return nil
	}
	if err := p.emitter.Emit(EventChanged, sheet); err != nil {
		return fmt.Errorf("failed to push theme %q: %w", sheet.Name, err)
	}
	return nil
}

// restartWatcher replaces the watcher with one for t when watching is on.
func (p *Plugin) restartWatcher(t *Theme) {
	p.Close()

	p.mu.RLock()
	s := p.settings
	p.mu.RUnlock()
	if !s.Watch || t.IsBundled {
		return
	}

	w := NewWatcher(t, p.logger)
	w.SetPollInterval(s.PollInterval.Duration())
	w.SetChangeCallback(p.reloaded)
	if err := w.Start(context.Background()); err != nil {
		p.logger.Warn("failed to start theme watcher", "error", err)
		return
	}

	p.mu.Lock()
	p.watcher = w
	p.mu.Unlock()
}

// reloaded runs on the watcher goroutine after the theme file changed.
func (p *Plugin) reloaded(t Theme) {
	p.mu.Lock()
	if p.theme == nil || p.theme.Path != t.Path {
		p.mu.Unlock()
		return
	}
	p.theme = &t
	p.mu.Unlock()

	if err := p.broadcast(Stylesheet{Name: t.Name, CSS: t.CSS}); err != nil {
		p.logger.Warn("failed to push reloaded theme", "theme", t.Name, "error", err)
	}
}

// Package plugin defines the plugin extension point and its registry.
package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicate is returned when a plugin name is registered twice.
var ErrDuplicate = errors.New("plugin already registered")

// Call is an inbound plugin command.
type Call interface {
	// Command is the part after "plugin:<name>|".
	Command() string
	// Window is the label of the calling window.
	Window() string
	// Decode unmarshals the call arguments into v.
	Decode(v any) error
}

// Plugin handles commands under its own namespace.
type Plugin interface {
	Name() string
	// InitScript runs in every window before page script. Empty for none.
	InitScript() string
	ExtendAPI(ctx context.Context, call Call) (any, error)
}

// Initializer is implemented by plugins that take configuration.
type Initializer interface {
	Initialize(config json.RawMessage) error
}

// WindowObserver is implemented by plugins that track window creation.
type WindowObserver interface {
	Created(window string)
}

// PageLoadObserver is implemented by plugins that react to page loads.
type PageLoadObserver interface {
	OnPageLoad(window, url string)
}

// Store holds the plugins of one application.
type Store struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{plugins: make(map[string]Plugin)}
}

// Register adds p. Names must be unique.
func (s *Store) Register(p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plugins[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	s.plugins[name] = p
	s.order = append(s.order, name)
	return nil
}

// Get returns the plugin registered under name.
func (s *Store) Get(name string) (Plugin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plugins[name]
	return p, ok
}

// Names returns registered plugin names sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// snapshot returns plugins in registration order.
func (s *Store) snapshot() []Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Plugin, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.plugins[name])
	}
	return out
}

// InitScripts returns every non-empty plugin init script in registration order.
func (s *Store) InitScripts() []string {
	var scripts []string
	for _, p := range s.snapshot() {
		if script := p.InitScript(); script != "" {
			scripts = append(scripts, script)
		}
	}
	return scripts
}

// Initialize passes each plugin its configuration, keyed by plugin name.
func (s *Store) Initialize(configs map[string]json.RawMessage) error {
	for _, p := range s.snapshot() {
		init, ok := p.(Initializer)
		if !ok {
			continue
		}
		if err := init.Initialize(configs[p.Name()]); err != nil {
			return fmt.Errorf("failed to initialize plugin %q: %w", p.Name(), err)
		}
	}
	return nil
}

// Created notifies observers that a window exists.
func (s *Store) Created(window string) {
	for _, p := range s.snapshot() {
		if o, ok := p.(WindowObserver); ok {
			o.Created(window)
		}
	}
}

// OnPageLoad notifies observers of a page load.
func (s *Store) OnPageLoad(window, url string) {
	for _, p := range s.snapshot() {
		if o, ok := p.(PageLoadObserver); ok {
			o.OnPageLoad(window, url)
		}
	}
}

package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/hostbridge/internal/store"
)

// maxRecentEvents caps a RecentEvents reply.
const maxRecentEvents = 1000

// Server implements the control interface over a Bridge. It also implements
// app.Observer so lifecycle and event notifications become bus signals.
type Server struct {
	conn   *dbus.Conn
	logger *slog.Logger

	bridge Bridge
	events EventSource

	mu      sync.RWMutex
	running bool
}

// NewServer creates a server for bridge. events may be nil, in which case
// RecentEvents always returns an empty list.
func NewServer(bridge Bridge, events EventSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger: logger,
		bridge: bridge,
		events: events,
	}
}

// Start connects to the session bus and exports the control service.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(s, Path, Interface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: Path,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}

	s.mu.Lock()
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus control server started", "interface", Interface, "path", Path)
	return nil
}

// Stop releases the bus name. The shared session connection stays open.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(BusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
	}

	s.logger.Info("D-Bus control server stopped")
	return nil
}

// ListWindows returns every registered window sorted by label.
// D-Bus method: ListWindows() -> a(sssxi)
func (s *Server) ListWindows() ([]WindowEntry, *dbus.Error) {
	s.logger.Debug("ListWindows called")
	infos := s.bridge.Windows()
	entries := make([]WindowEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, NewWindowEntry(info))
	}
	return entries, nil
}

// Emit sends an event to every window. payload is JSON text, empty for null.
// D-Bus method: Emit(ss) -> nothing
func (s *Server) Emit(event, payload string) *dbus.Error {
	s.logger.Debug("Emit called", "event", event)
	if err := s.bridge.Emit("", event, rawPayload(payload)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// EmitTo sends an event to one window.
// D-Bus method: EmitTo(sss) -> nothing
func (s *Server) EmitTo(window, event, payload string) *dbus.Error {
	s.logger.Debug("EmitTo called", "window", window, "event", event)
	if window == "" {
		return dbus.MakeFailedError(fmt.Errorf("window label must not be empty"))
	}
	if err := s.bridge.Emit(window, event, rawPayload(payload)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Trigger fires host listeners only. An empty window leaves the event
// unattributed.
// D-Bus method: Trigger(sss) -> nothing
func (s *Server) Trigger(window, event, payload string) *dbus.Error {
	s.logger.Debug("Trigger called", "window", window, "event", event)
	if err := s.bridge.Trigger(window, event, rawPayload(payload)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// RecentEvents returns up to limit recorded events, oldest first. A limit of
// 0 or less returns the maximum.
// D-Bus method: RecentEvents(i) -> a(sssassx)
func (s *Server) RecentEvents(limit int32) ([]EventEntry, *dbus.Error) {
	s.logger.Debug("RecentEvents called", "limit", limit)
	if s.events == nil {
		return []EventEntry{}, nil
	}
	n := int(limit)
	if n <= 0 || n > maxRecentEvents {
		n = maxRecentEvents
	}
	records := s.events.Filter(store.FilterOptions{Limit: n})
	entries := make([]EventEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, NewEventEntry(r))
	}
	return entries, nil
}

// controlMethods returns the D-Bus method introspection data.
func controlMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "ListWindows",
			Args: []introspect.Arg{
				{Name: "windows", Type: "a(sssxi)", Direction: "out"},
			},
		},
		{
			Name: "Emit",
			Args: []introspect.Arg{
				{Name: "event", Type: "s", Direction: "in"},
				{Name: "payload", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "EmitTo",
			Args: []introspect.Arg{
				{Name: "window", Type: "s", Direction: "in"},
				{Name: "event", Type: "s", Direction: "in"},
				{Name: "payload", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "Trigger",
			Args: []introspect.Arg{
				{Name: "window", Type: "s", Direction: "in"},
				{Name: "event", Type: "s", Direction: "in"},
				{Name: "payload", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "RecentEvents",
			Args: []introspect.Arg{
				{Name: "limit", Type: "i", Direction: "in"},
				{Name: "events", Type: "a(sssassx)", Direction: "out"},
			},
		},
	}
}

// controlSignals returns the D-Bus signal introspection data.
func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: SignalWindowCreated,
			Args: []introspect.Arg{
				{Name: "window", Type: "(sssxi)"},
			},
		},
		{
			Name: SignalWindowClosed,
			Args: []introspect.Arg{
				{Name: "label", Type: "s"},
			},
		},
		{
			Name: SignalEventEmitted,
			Args: []introspect.Arg{
				{Name: "event", Type: "(sssassx)"},
			},
		},
	}
}

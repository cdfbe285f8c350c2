package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// emit sends a signal if the server is connected.
func (s *Server) emit(member string, values ...any) error {
	s.mu.RLock()
	conn, running := s.conn, s.running
	s.mu.RUnlock()

	if !running || conn == nil {
		return nil
	}
	if err := conn.Emit(Path, Interface+"."+member, values...); err != nil {
		return fmt.Errorf("failed to emit %s signal: %w", member, err)
	}
	return nil
}

// WindowCreated emits the WindowCreated signal.
func (s *Server) WindowCreated(info model.WindowInfo) {
	if err := s.emit(SignalWindowCreated, NewWindowEntry(info)); err != nil {
		s.logger.Warn("failed to emit signal", "signal", SignalWindowCreated, "window", info.Label, "error", err)
		return
	}
	s.logger.Debug("emitted WindowCreated signal", "window", info.Label)
}

// WindowClosed emits the WindowClosed signal.
func (s *Server) WindowClosed(label string) {
	if err := s.emit(SignalWindowClosed, label); err != nil {
		s.logger.Warn("failed to emit signal", "signal", SignalWindowClosed, "window", label, "error", err)
		return
	}
	s.logger.Debug("emitted WindowClosed signal", "window", label)
}

// EventEmitted emits the EventEmitted signal.
func (s *Server) EventEmitted(record model.EventRecord) {
	if err := s.emit(SignalEventEmitted, NewEventEntry(record)); err != nil {
		s.logger.Warn("failed to emit signal", "signal", SignalEventEmitted, "event", record.Event, "error", err)
	}
}

// Connection returns the underlying D-Bus connection, nil before Start.
func (s *Server) Connection() *dbus.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

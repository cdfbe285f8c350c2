package dbus

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// Handlers receives control signals. Nil handlers are skipped.
type Handlers struct {
	WindowCreated func(info model.WindowInfo)
	WindowClosed  func(label string)
	EventEmitted  func(record model.EventRecord)
}

// Monitor subscribes to the control service signals.
type Monitor struct {
	conn     *dbus.Conn
	logger   *slog.Logger
	handlers Handlers
	signals  chan *dbus.Signal
}

// NewMonitor creates a new signal monitor.
func NewMonitor(handlers Handlers, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:   logger,
		handlers: handlers,
	}
}

// Start subscribes on a private session bus connection and processes signals
// in the background.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(Path),
		dbus.WithMatchInterface(Interface),
	); err != nil {
		conn.Close()
		return fmt.Errorf("failed to add match rule: %w", err)
	}

	m.conn = conn
	m.signals = make(chan *dbus.Signal, 100)
	conn.Signal(m.signals)

	m.logger.Debug("started D-Bus signal monitor", "interface", Interface)
	go m.processSignals()
	return nil
}

func (m *Monitor) processSignals() {
	for sig := range m.signals {
		m.dispatch(sig)
	}
}

// dispatch decodes one signal and calls the matching handler.
func (m *Monitor) dispatch(sig *dbus.Signal) {
	if sig == nil || sig.Path != Path {
		return
	}
	member, ok := strings.CutPrefix(sig.Name, Interface+".")
	if !ok {
		return
	}

	switch member {
	case SignalWindowCreated:
		var entry WindowEntry
		if err := dbus.Store(sig.Body, &entry); err != nil {
			m.logger.Warn("malformed signal", "signal", member, "error", err)
			return
		}
		if m.handlers.WindowCreated != nil {
			m.handlers.WindowCreated(entry.Info())
		}
	case SignalWindowClosed:
		var label string
		if err := dbus.Store(sig.Body, &label); err != nil {
			m.logger.Warn("malformed signal", "signal", member, "error", err)
			return
		}
		if m.handlers.WindowClosed != nil {
			m.handlers.WindowClosed(label)
		}
	case SignalEventEmitted:
		var entry EventEntry
		if err := dbus.Store(sig.Body, &entry); err != nil {
			m.logger.Warn("malformed signal", "signal", member, "error", err)
			return
		}
		if m.handlers.EventEmitted != nil {
			m.handlers.EventEmitted(entry.Record())
		}
	default:
		m.logger.Debug("ignoring unknown signal", "signal", member)
	}
}

// Stop closes the monitor connection.
func (m *Monitor) Stop() error {
	if m.conn == nil {
		return nil
	}
	m.conn.RemoveSignal(m.signals)
	err := m.conn.Close()
	close(m.signals)
	return err
}

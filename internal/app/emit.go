package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/model"
	"github.com/jmylchreest/hostbridge/internal/observability"
)

// Emit sends event to every window.
func (m *Manager) Emit(name string, payload any) error {
	return m.EmitFilter(name, payload, func(*Window) bool { return true })
}

// EmitTo sends event to the window registered under label.
func (m *Manager) EmitTo(label, name string, payload any) error {
	w, ok := m.GetWindow(label)
	if !ok {
		return fmt.Errorf("%w: %q", ErrWindowNotFound, label)
	}
	return w.Emit(name, payload)
}

// EmitOthers sends event to every window except the one labelled except.
func (m *Manager) EmitOthers(except, name string, payload any) error {
	return m.EmitFilter(name, payload, func(w *Window) bool { return w.Label() != except })
}

// EmitFilter sends event to every window for which filter returns true.
func (m *Manager) EmitFilter(name string, payload any, filter func(*Window) bool) error {
	return m.EmitFrom(model.SourceHost, name, payload, filter)
}

// EmitFrom is EmitFilter with the record attributed to source.
//
// For each matching window the notification script is evaluated with a fresh
// salt, then host listeners are triggered with the event attributed to that
// window. Delivery failures are collected; remaining windows still receive
// the event.
func (m *Manager) EmitFrom(source, name string, payload any, filter func(*Window) bool) error {
	if err := event.ValidateName(name); err != nil {
		return err
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}

	var (
		errs    []error
		targets []string
	)
	for _, w := range m.Windows() {
		if !filter(w) {
			continue
		}
		s := m.GenerateEventSalt(w.Label())
		if err := w.EvalScript(ipc.EmitScript(m.names.Emit, name, raw, s)); err != nil {
			m.salts.VerifyFor(w.Label(), s)
			errs = append(errs, fmt.Errorf("window %q: %w", w.Label(), err))
			continue
		}
		targets = append(targets, w.Label())
		m.bus.Trigger(name, w.Label(), raw)
	}

	m.record(source, name, "", targets, raw)
	return errors.Join(errs...)
}

// Trigger fires host listeners only. window attributes the event to a label;
// empty means unattributed.
func (m *Manager) Trigger(name, window string, payload any) error {
	return m.TriggerFrom(model.SourceHost, name, window, payload)
}

// TriggerFrom is Trigger with the record attributed to source.
func (m *Manager) TriggerFrom(source, name, window string, payload any) error {
	if err := event.ValidateName(name); err != nil {
		return err
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	m.bus.Trigger(name, window, raw)
	m.record(source, name, window, nil, raw)
	return nil
}

// Listen registers a host listener. An empty window listens to all windows.
func (m *Manager) Listen(name, window string, h event.Handler) event.HandlerID {
	return m.bus.Listen(name, window, h)
}

// Once registers a one-shot host listener.
func (m *Manager) Once(name, window string, h event.Handler) event.HandlerID {
	return m.bus.Once(name, window, h)
}

// Unlisten removes a host listener.
func (m *Manager) Unlisten(id event.HandlerID) bool {
	return m.bus.Unlisten(id)
}

func (m *Manager) record(source, name, window string, targets []string, raw json.RawMessage) {
	observability.RecordEvent(source)

	observers := m.observerSnapshot()
	if len(observers) == 0 {
		return
	}
	rec, err := model.NewEventRecord(name, source, raw)
	if err != nil {
		m.logger.Warn("failed to record event", "event", name, "error", err)
		return
	}
	rec.Window = window
	rec.Targets = targets
	for _, o := range observers {
		o.EventEmitted(*rec)
	}
}

// encodePayload converts payload to JSON. json.RawMessage is passed through
// after validation.
func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(p) {
			return nil, ipc.SerializationFailure(fmt.Errorf("payload is not valid JSON"))
		}
		return p, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, ipc.SerializationFailure(err)
	}
	return data, nil
}

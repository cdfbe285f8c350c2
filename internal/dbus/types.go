package dbus

import (
	"encoding/json"

	"github.com/jmylchreest/hostbridge/internal/model"
)

const (
	// Interface is the control interface name.
	Interface = "io.github.jmylchreest.HostBridge"
	// Path is the control object path.
	Path = "/io/github/jmylchreest/HostBridge"
	// BusName is the bus name to claim.
	BusName = "io.github.jmylchreest.HostBridge"
)

// Signal members.
const (
	SignalWindowCreated = "WindowCreated"
	SignalWindowClosed  = "WindowClosed"
	SignalEventEmitted  = "EventEmitted"
)

// WindowEntry is a window as sent over the bus.
// D-Bus signature: (sssxi)
type WindowEntry struct {
	Label     string
	URL       string
	Title     string
	CreatedAt int64 // Unix milliseconds
	Loads     int32
}

// NewWindowEntry converts a window description.
func NewWindowEntry(info model.WindowInfo) WindowEntry {
	return WindowEntry{
		Label:     info.Label,
		URL:       info.URL,
		Title:     info.Title,
		CreatedAt: info.CreatedAt,
		Loads:     int32(info.Loads),
	}
}

// Info converts the entry back to a window description.
func (e WindowEntry) Info() model.WindowInfo {
	return model.WindowInfo{
		Label:     e.Label,
		URL:       e.URL,
		Title:     e.Title,
		CreatedAt: e.CreatedAt,
		Loads:     int(e.Loads),
	}
}

// EventEntry is an event record as sent over the bus. The payload travels
// as JSON text.
// D-Bus signature: (sssassx)
type EventEntry struct {
	ID        string
	Event     string
	Window    string
	Targets   []string
	Payload   string
	Source    string
	Timestamp int64 // Unix milliseconds
}

// NewEventEntry converts an event record.
func NewEventEntry(r model.EventRecord) EventEntry {
	targets := r.Targets
	if targets == nil {
		targets = []string{}
	}
	return EventEntry{
		ID:        r.ID,
		Event:     r.Event,
		Window:    r.Window,
		Targets:   targets,
		Payload:   r.PayloadString(),
		Source:    r.Source,
		Timestamp: r.Timestamp,
	}
}

// Record converts the entry back to an event record.
func (e EventEntry) Record() model.EventRecord {
	r := model.EventRecord{
		ID:        e.ID,
		Event:     e.Event,
		Window:    e.Window,
		Source:    e.Source,
		Timestamp: e.Timestamp,
	}
	if len(e.Targets) > 0 {
		r.Targets = e.Targets
	}
	if e.Payload != "" && e.Payload != "null" {
		r.Payload = json.RawMessage(e.Payload)
	}
	return r
}

// rawPayload turns a bus payload argument into JSON. Empty means null.
func rawPayload(payload string) json.RawMessage {
	if payload == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(payload)
}

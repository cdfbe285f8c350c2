package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// Client calls a running control service.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewClient connects to the session bus. It does not check that the service
// is running; the first call fails if it is not.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(BusName, Path),
	}, nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
}

// ListWindows returns the registered windows.
func (c *Client) ListWindows(ctx context.Context) ([]model.WindowInfo, error) {
	var entries []WindowEntry
	if err := c.call(ctx, "ListWindows").Store(&entries); err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	infos := make([]model.WindowInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.Info())
	}
	return infos, nil
}

// Emit sends event to every window, or only to window when it is not empty.
// payload is JSON text.
func (c *Client) Emit(ctx context.Context, window, event, payload string) error {
	var call *dbus.Call
	if window == "" {
		call = c.call(ctx, "Emit", event, payload)
	} else {
		call = c.call(ctx, "EmitTo", window, event, payload)
	}
	if call.Err != nil {
		return fmt.Errorf("failed to emit %q: %w", event, call.Err)
	}
	return nil
}

// Trigger fires host listeners in the application.
func (c *Client) Trigger(ctx context.Context, window, event, payload string) error {
	if err := c.call(ctx, "Trigger", window, event, payload).Err; err != nil {
		return fmt.Errorf("failed to trigger %q: %w", event, err)
	}
	return nil
}

// RecentEvents returns up to limit recorded events.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]model.EventRecord, error) {
	var entries []EventEntry
	if err := c.call(ctx, "RecentEvents", int32(limit)).Store(&entries); err != nil {
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}
	records := make([]model.EventRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record())
	}
	return records, nil
}

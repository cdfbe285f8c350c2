package dbus

import (
	"encoding/json"
	"fmt"

	"github.com/jmylchreest/hostbridge/internal/app"
	"github.com/jmylchreest/hostbridge/internal/model"
	"github.com/jmylchreest/hostbridge/internal/store"
)

// Bridge is the application surface the server drives.
type Bridge interface {
	Windows() []model.WindowInfo
	// Emit delivers to window, or to every window when window is empty.
	Emit(window, event string, payload json.RawMessage) error
	Trigger(window, event string, payload json.RawMessage) error
}

// EventSource returns recently recorded events.
type EventSource interface {
	Filter(opts store.FilterOptions) []model.EventRecord
}

// ManagerBridge adapts a window manager. Events are attributed to the
// control source.
func ManagerBridge(m *app.Manager) Bridge {
	return managerBridge{m: m}
}

type managerBridge struct {
	m *app.Manager
}

func (b managerBridge) Windows() []model.WindowInfo {
	windows := b.m.Windows()
	infos := make([]model.WindowInfo, 0, len(windows))
	for _, w := range windows {
		infos = append(infos, w.Info())
	}
	return infos
}

func (b managerBridge) Emit(window, event string, payload json.RawMessage) error {
	if window == "" {
		return b.m.EmitFrom(model.SourceControl, event, payload, func(*app.Window) bool { return true })
	}
	if _, ok := b.m.GetWindow(window); !ok {
		return fmt.Errorf("%w: %q", app.ErrWindowNotFound, window)
	}
	return b.m.EmitFrom(model.SourceControl, event, payload, func(w *app.Window) bool {
		return w.Label() == window
	})
}

func (b managerBridge) Trigger(window, event string, payload json.RawMessage) error {
	return b.m.TriggerFrom(model.SourceControl, event, window, payload)
}

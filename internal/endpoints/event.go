package endpoints

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jmylchreest/hostbridge/internal/app"
	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/model"
)

// AnyWindow scopes a page listener to events from every window.
const AnyWindow = "*"

type emitArgs struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"` // Also deliver to every other window's page
}

type listenArgs struct {
	Event   string         `json:"event"`
	Handler ipc.CallbackID `json:"handler"`          // Persistent page callback from transformCallback
	Window  string         `json:"window,omitempty"` // Calling window when empty, AnyWindow for all
}

type unlistenArgs struct {
	ID event.HandlerID `json:"id"`
}

// pageEvent is what a page listener is called with.
type pageEvent struct {
	Event   string          `json:"event"`
	Window  string          `json:"windowLabel"`
	Payload json.RawMessage `json:"payload"`
}

// pageListeners tracks host listeners registered from page script so a
// window can only remove its own and they go away with the window.
type pageListeners struct {
	m *app.Manager

	mu     sync.Mutex
	owners map[event.HandlerID]string
}

func (p *pageListeners) listen(owner string, args listenArgs) event.HandlerID {
	scope := args.Window
	switch scope {
	case "":
		scope = owner
	case AnyWindow:
		scope = ""
	}

	id := p.m.Listen(args.Event, scope, func(e event.Event) {
		p.deliver(owner, args.Handler, e)
	})

	p.mu.Lock()
	p.owners[id] = owner
	p.mu.Unlock()
	return id
}

func (p *pageListeners) deliver(owner string, cb ipc.CallbackID, e event.Event) {
	w, ok := p.m.GetWindow(owner)
	if !ok {
		return
	}
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	script, err := ipc.CallbackScript(cb, pageEvent{Event: e.Name, Window: e.Window, Payload: payload})
	if err != nil {
		return
	}
	_ = w.EvalScript(script)
}

func (p *pageListeners) unlisten(owner string, id event.HandlerID) bool {
	p.mu.Lock()
	if p.owners[id] != owner {
		p.mu.Unlock()
		return false
	}
	delete(p.owners, id)
	p.mu.Unlock()
	return p.m.Unlisten(id)
}

// WindowCreated implements app.Observer.
func (p *pageListeners) WindowCreated(model.WindowInfo) {}

// WindowClosed drops every listener the closed window registered.
func (p *pageListeners) WindowClosed(label string) {
	p.mu.Lock()
	var ids []event.HandlerID
	for id, owner := range p.owners {
		if owner == label {
			ids = append(ids, id)
			delete(p.owners, id)
		}
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.m.Unlisten(id)
	}
}

// EventEmitted implements app.Observer.
func (p *pageListeners) EventEmitted(model.EventRecord) {}

// count returns how many page listeners are registered.
func (p *pageListeners) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.owners)
}

func newEventModule(m *app.Manager) *module {
	listeners := &pageListeners{m: m, owners: make(map[event.HandlerID]string)}
	m.AddObserver(listeners)

	return &module{
		name: ModuleEvent,
		commands: map[string]command{
			"listen": func(_ context.Context, msg *app.InvokeMessage) (any, error) {
				var args listenArgs
				if err := msg.Decode(&args); err != nil {
					return nil, err
				}
				if err := event.ValidateName(args.Event); err != nil {
					return nil, ipc.SerializationFailure(err)
				}
				if args.Handler == "" {
					return nil, missingArg("handler")
				}
				return listeners.listen(msg.Window.Label(), args), nil
			},
			"unlisten": func(_ context.Context, msg *app.InvokeMessage) (any, error) {
				var args unlistenArgs
				if err := msg.Decode(&args); err != nil {
					return nil, err
				}
				return listeners.unlisten(msg.Window.Label(), args.ID), nil
			},
			"emit": func(_ context.Context, msg *app.InvokeMessage) (any, error) {
				var args emitArgs
				if err := msg.Decode(&args); err != nil {
					return nil, err
				}
				if args.Event == "" {
					return nil, missingArg("event")
				}

				origin := msg.Window.Label()
				if err := m.TriggerFrom(model.SourcePage, args.Event, origin, args.Payload); err != nil {
					return nil, err
				}
				if !args.Broadcast {
					return nil, nil
				}
				return nil, m.EmitFrom(model.SourcePage, args.Event, args.Payload, func(w *app.Window) bool {
					return w.Label() != origin
				})
			},
		},
	}
}

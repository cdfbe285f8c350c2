// Package event implements the host-side event bus.
package event

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// HandlerID identifies a registered listener.
type HandlerID uint64

// Event is one dispatched notification.
type Event struct {
	Name    string
	Window  string // Label the event is attributed to, empty if none
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload of %q: %w", e.Name, err)
	}
	return nil
}

// Handler receives events.
type Handler func(Event)

type listener struct {
	id     HandlerID
	window string
	once   bool
	fired  atomic.Bool
	fn     Handler
}

// Bus routes named events to registered listeners.
type Bus struct {
	mu        sync.Mutex
	nextID    HandlerID
	listeners map[string][]*listener
	index     map[HandlerID]string // id -> event name
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]*listener),
		index:     make(map[HandlerID]string),
	}
}

// Listen registers fn for event until Unlisten. With a non-empty window the
// listener only sees events attributed to that label.
func (b *Bus) Listen(event, window string, fn Handler) HandlerID {
	return b.add(event, window, false, fn)
}

// Once registers fn for the first matching dispatch only.
func (b *Bus) Once(event, window string, fn Handler) HandlerID {
	return b.add(event, window, true, fn)
}

func (b *Bus) add(event, window string, once bool, fn Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	l := &listener{id: b.nextID, window: window, once: once, fn: fn}
	b.listeners[event] = append(b.listeners[event], l)
	b.index[l.id] = event
	return l.id
}

// Unlisten removes a listener. It reports whether the id was registered.
func (b *Bus) Unlisten(id HandlerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(id)
}

// removeLocked deletes a listener. Caller must hold b.mu.
func (b *Bus) removeLocked(id HandlerID) bool {
	event, ok := b.index[id]
	if !ok {
		return false
	}
	delete(b.index, id)

	list := b.listeners[event]
	for i, l := range list {
		if l.id == id {
			// Copy so snapshots taken by in-flight dispatches stay intact.
			next := make([]*listener, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(b.listeners, event)
			} else {
				b.listeners[event] = next
			}
			break
		}
	}
	return true
}

// Trigger calls every matching listener synchronously in registration order
// and returns how many ran. Listeners removed during the pass still run if
// they were matched when it started.
func (b *Bus) Trigger(event, window string, payload json.RawMessage) int {
	b.mu.Lock()
	snapshot := b.listeners[event]
	b.mu.Unlock()

	ev := Event{Name: event, Window: window, Payload: payload}
	n := 0
	for _, l := range snapshot {
		if l.window != "" && l.window != window {
			continue
		}
		if l.once {
			if !l.fired.CompareAndSwap(false, true) {
				continue
			}
			b.Unlisten(l.id)
		}
		l.fn(ev)
		n++
	}
	return n
}

// Len returns the number of listeners registered for event.
func (b *Bus) Len(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}

// Clear removes every listener scoped to window. Unscoped listeners are kept.
func (b *Bus) Clear(window string) int {
	if window == "" {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []HandlerID
	for _, list := range b.listeners {
		for _, l := range list {
			if l.window == window {
				ids = append(ids, l.id)
			}
		}
	}
	for _, id := range ids {
		b.removeLocked(id)
	}
	return len(ids)
}

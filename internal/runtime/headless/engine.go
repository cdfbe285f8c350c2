// Package headless is an in-process engine that runs each window's page in an
// embedded JavaScript context.
//
// It has no rendering surface. Window operations update an observable State
// and are appended to a per-window operation log, which makes the engine
// suitable for tests and for driving a bridge application without a display.
//
// All JavaScript runs on the engine's single event-loop goroutine. Dispatcher
// calls enqueue work and return; the driver methods (Evaluate, State, Sync,
// DropFiles, Request, Navigate) wait for the loop and must not be called from
// inside page script callbacks.
package headless

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// ErrStopped is returned by driver methods once the event loop has exited.
var ErrStopped = errors.New("headless engine stopped")

// Option configures an Engine.
type Option func(*Engine)

// DefaultClosedHistory is how many closed windows keep their logs.
const DefaultClosedHistory = 32

// WithClosedHistory sets how many closed windows keep their operation and
// console logs. Older ones are forgotten.
func WithClosedHistory(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.keepClosed = n
		}
	}
}

// WithExitOnLastWindow stops the event loop when the last window closes.
func WithExitOnLastWindow() Option {
	return func(e *Engine) { e.exitOnLast = true }
}

// Engine is a headless runtime.Runtime.
type Engine struct {
	logger     *slog.Logger
	exitOnLast bool
	keepClosed int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	stopping bool
	windows  map[string]*window
	history  map[string]*window // Most recent window per label, closed or not
	closed   []string           // Labels whose history entry is closed, oldest first
	done     chan struct{}
}

// New starts the engine's event loop.
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:     logger,
		keepClosed: DefaultClosedHistory,
		windows:    make(map[string]*window),
		history:    make(map[string]*window),
		done:       make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	go e.loop()
	return e
}

// NewRuntime is a runtime.Factory for the headless engine.
func NewRuntime(logger *slog.Logger) (runtime.Runtime, error) {
	return New(logger, WithExitOnLastWindow()), nil
}

// CreateWindow realizes pending and queues its first page load.
func (e *Engine) CreateWindow(pending *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	if err := pending.Consume(); err != nil {
		return runtime.DetachedWindow{}, fmt.Errorf("%w: %w", runtime.ErrCreateWindow, err)
	}

	w, err := newWindow(e, pending)
	if err != nil {
		return runtime.DetachedWindow{}, fmt.Errorf("%w %q: %w", runtime.ErrCreateWindow, pending.Label, err)
	}

	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return runtime.DetachedWindow{}, fmt.Errorf("%w %q: %w", runtime.ErrCreateWindow, pending.Label, ErrStopped)
	}
	if _, ok := e.windows[w.label]; ok {
		e.mu.Unlock()
		return runtime.DetachedWindow{}, fmt.Errorf("%w: label %q is live", runtime.ErrCreateWindow, w.label)
	}
	e.windows[w.label] = w
	e.history[w.label] = w
	e.forgetClosedLocked(w.label)
	e.queue = append(e.queue, func() { w.load(w.url) })
	e.cond.Signal()
	e.mu.Unlock()

	e.logger.Debug("headless window created", "window", w.label, "url", w.url.String())
	return w.detached(), nil
}

// Run blocks until the event loop exits.
func (e *Engine) Run() error {
	<-e.done
	return nil
}

// Exit stops the event loop. Queued work that has not started is dropped.
func (e *Engine) Exit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopping = true
	e.cond.Broadcast()
}

// Done is closed when the event loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Labels returns the live window labels sorted.
func (e *Engine) Labels() []string {
	e.mu.Lock()
	labels := make([]string, 0, len(e.windows))
	for label := range e.windows {
		labels = append(labels, label)
	}
	e.mu.Unlock()
	sort.Strings(labels)
	return labels
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.stopping {
			e.cond.Wait()
		}
		if e.stopping {
			remaining := e.windows
			e.windows = make(map[string]*window)
			e.queue = nil
			e.mu.Unlock()
			e.shutdown(remaining)
			return
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(task)
	}
}

func (e *Engine) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("headless task panicked", "error", fmt.Sprint(r))
		}
	}()
	task()
}

func (e *Engine) shutdown(windows map[string]*window) {
	labels := make([]string, 0, len(windows))
	for label := range windows {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		windows[label].destroy()
	}
	e.logger.Debug("headless engine stopped", "windows", len(labels))
}

// enqueue schedules task for w. It fails once w is closing or the engine is
// stopping.
func (e *Engine) enqueue(w *window, task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopping || w.closing {
		return runtime.ErrDelivery
	}
	e.queue = append(e.queue, task)
	e.cond.Signal()
	return nil
}

// enqueueClose marks w closing and schedules its destruction after work
// already queued for it.
func (e *Engine) enqueueClose(w *window) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopping || w.closing {
		return runtime.ErrDelivery
	}
	w.closing = true
	e.queue = append(e.queue, func() { e.closeWindow(w) })
	e.cond.Signal()
	return nil
}

func (e *Engine) closeWindow(w *window) {
	e.mu.Lock()
	if e.windows[w.label] == w {
		delete(e.windows, w.label)
	}
	if e.history[w.label] == w {
		e.closed = append(e.closed, w.label)
		for len(e.closed) > e.keepClosed {
			delete(e.history, e.closed[0])
			e.closed = e.closed[1:]
		}
	}
	last := len(e.windows) == 0
	e.mu.Unlock()

	w.recordOp("close")
	w.destroy()
	e.logger.Debug("headless window closed", "window", w.label)

	if last && e.exitOnLast {
		e.Exit()
	}
}

// forgetClosedLocked drops label from the closed list once a new window
// takes over its history entry. Caller must hold e.mu.
func (e *Engine) forgetClosedLocked(label string) {
	for i, l := range e.closed {
		if l == label {
			e.closed = append(e.closed[:i], e.closed[i+1:]...)
			return
		}
	}
}

// roundTrip runs fn on the loop and waits for it.
func (e *Engine) roundTrip(w *window, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	var err error
	if w == nil {
		e.mu.Lock()
		if e.stopping {
			err = ErrStopped
		} else {
			e.queue = append(e.queue, task)
			e.cond.Signal()
		}
		e.mu.Unlock()
	} else {
		err = e.enqueue(w, task)
	}
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

func (e *Engine) lookup(label string) (*window, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.windows[label]
	if !ok || w.closing {
		return nil, fmt.Errorf("%w: %q", runtime.ErrDelivery, label)
	}
	return w, nil
}

// Sync waits until the event loop has drained every task queued so far and
// every task those tasks queued in turn.
func (e *Engine) Sync() error {
	for {
		var idle bool
		err := e.roundTrip(nil, func() {
			e.mu.Lock()
			idle = len(e.queue) == 0
			e.mu.Unlock()
		})
		if err != nil {
			return err
		}
		if idle {
			return nil
		}
	}
}

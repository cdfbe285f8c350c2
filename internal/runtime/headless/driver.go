package headless

import (
	"fmt"

	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// Navigate loads u in the window, replacing its script context.
func (e *Engine) Navigate(label string, u runtime.WindowURL) error {
	w, err := e.lookup(label)
	if err != nil {
		return err
	}
	return e.enqueue(w, func() { w.load(u) })
}

// Evaluate runs script in the window and returns its exported completion
// value.
func (e *Engine) Evaluate(label, script string) (any, error) {
	w, err := e.lookup(label)
	if err != nil {
		return nil, err
	}

	var (
		result any
		runErr error
	)
	err = e.roundTrip(w, func() {
		if w.vm == nil {
			runErr = runtime.ErrDelivery
			return
		}
		v, err := w.vm.RunScript("evaluate", script)
		if err != nil {
			runErr = fmt.Errorf("script failed: %w", err)
			return
		}
		result = v.Export()
	})
	if err != nil {
		return nil, err
	}
	return result, runErr
}

// State returns a snapshot of the window's observable state.
func (e *Engine) State(label string) (State, error) {
	w, err := e.lookup(label)
	if err != nil {
		return State{}, err
	}
	var s State
	err = e.roundTrip(w, func() { s = w.state })
	return s, err
}

// DropFiles delivers an OS file drop to the window's file-drop hook and
// reports whether the hook consumed it.
func (e *Engine) DropFiles(label string, kind runtime.FileDropKind, paths ...string) (bool, error) {
	w, err := e.lookup(label)
	if err != nil {
		return false, err
	}
	var handled bool
	err = e.roundTrip(w, func() {
		if w.fileDrop == nil {
			return
		}
		handled = w.fileDrop.HandleFileDrop(w.detached(), runtime.FileDropEvent{Kind: kind, Paths: paths})
	})
	return handled, err
}

// Request issues a custom-protocol request on behalf of the window's page.
func (e *Engine) Request(label, target string) ([]byte, error) {
	w, err := e.lookup(label)
	if err != nil {
		return nil, err
	}
	var (
		data     []byte
		fetchErr error
	)
	err = e.roundTrip(w, func() { data, fetchErr = w.fetch(target) })
	if err != nil {
		return nil, err
	}
	return data, fetchErr
}

// Operations returns the window operations applied so far, in order. The
// log survives the window being closed.
func (e *Engine) Operations(label string) []string {
	w := e.recorded(label)
	if w == nil {
		return nil
	}
	w.logMu.Lock()
	defer w.logMu.Unlock()
	return append([]string(nil), w.ops...)
}

// Console returns what page script wrote to the console, as "level: text".
func (e *Engine) Console(label string) []string {
	w := e.recorded(label)
	if w == nil {
		return nil
	}
	w.logMu.Lock()
	defer w.logMu.Unlock()
	return append([]string(nil), w.console...)
}

func (e *Engine) recorded(label string) *window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history[label]
}

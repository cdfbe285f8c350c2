package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/model"
	"github.com/jmylchreest/hostbridge/internal/observability"
	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// InvokeHandler handles an inbound call. The returned value is sent to the
// page as JSON; a returned error rejects the page-side promise.
type InvokeHandler interface {
	Invoke(ctx context.Context, msg *InvokeMessage) (any, error)
}

// InvokeHandlerFunc adapts a function to InvokeHandler.
type InvokeHandlerFunc func(ctx context.Context, msg *InvokeMessage) (any, error)

// Invoke calls f.
func (f InvokeHandlerFunc) Invoke(ctx context.Context, msg *InvokeMessage) (any, error) {
	return f(ctx, msg)
}

// InvokeMessage is one authenticated inbound call.
type InvokeMessage struct {
	ID      string // Correlation id for logs
	Window  *Window
	Command string
	Module  string
	Inner   json.RawMessage

	callback ipc.CallbackID
	errorCB  ipc.CallbackID
}

func newInvokeMessage(w *Window, p ipc.InvokePayload) *InvokeMessage {
	id, _ := model.NewID()
	return &InvokeMessage{
		ID:       id,
		Window:   w,
		Command:  p.Command,
		Module:   p.Module,
		Inner:    p.Inner,
		callback: p.Callback,
		errorCB:  p.Error,
	}
}

// Decode unmarshals the call arguments into v.
func (msg *InvokeMessage) Decode(v any) error {
	if len(msg.Inner) == 0 {
		return ipc.SerializationFailure(fmt.Errorf("command %q has no arguments", msg.Command))
	}
	if err := json.Unmarshal(msg.Inner, v); err != nil {
		return ipc.SerializationFailure(err)
	}
	return nil
}

// pluginCall presents an InvokeMessage to a plugin.
type pluginCall struct {
	msg     *InvokeMessage
	command string
}

func (c pluginCall) Command() string    { return c.command }
func (c pluginCall) Window() string     { return c.msg.Window.Label() }
func (c pluginCall) Decode(v any) error { return c.msg.Decode(v) }

// HandleInvoke is the engine's invoke hook. It runs on the event loop:
// authentication and salt rotation happen here, handler work goes to the
// worker pool.
func (m *Manager) HandleInvoke(dw runtime.DetachedWindow, payload ipc.InvokePayload) {
	w, ok := m.GetWindow(dw.Label)
	if !ok {
		m.logger.Warn("dropping message for unregistered window",
			"window", dw.Label, "command", payload.Command)
		return
	}

	if payload.Command == ipc.CommandInitialized {
		m.resetSalts(w)
	} else {
		if !m.VerifySalt(w.Label(), payload.Salt) {
			m.logger.Warn("rejected call with invalid salt",
				"window", w.Label(), "command", payload.Command, "module", payload.Module)
			observability.RecordInvoke(observability.RouteNone, observability.OutcomeUnauthorized)
			m.respond(w, "", payload.Error, nil, ipc.Unauthorized())
			// The bridge waits for a salt after every submission.
			m.resetSalts(w)
			return
		}
		m.pushSalt(w)
	}

	err := m.pool.Submit(func(ctx context.Context) {
		m.OnMessage(ctx, w, payload)
	})
	if err != nil {
		m.logger.Warn("dropping message, worker pool closed",
			"window", w.Label(), "command", payload.Command)
	}
}

// resetSalts invalidates the call salts of w and hands the bridge a new one.
// Event salts already on their way to the page stay valid.
func (m *Manager) resetSalts(w *Window) {
	if n := m.salts.RevokeCalls(w.Label()); n > 0 {
		m.logger.Debug("revoked call salts", "window", w.Label(), "count", n)
	}
	m.pushSalt(w)
}

// pushSalt mints the next salt for w and sends it to the bridge.
func (m *Manager) pushSalt(w *Window) {
	s := m.GenerateSalt(w.Label())
	if err := w.EvalScript(ipc.SetSaltScript(m.names.SetSalt, s)); err != nil {
		m.salts.VerifyFor(w.Label(), s)
		m.logger.Warn("failed to deliver salt", "window", w.Label(), "error", err)
	}
}

// OnMessage handles one authenticated message. Page loads run the page-load
// handlers; everything else is routed to exactly one of the endpoint table,
// a plugin, or the global invoke handler.
func (m *Manager) OnMessage(ctx context.Context, w *Window, payload ipc.InvokePayload) {
	if payload.Command == ipc.CommandInitialized {
		m.runOnPageLoad(w, payload)
		return
	}

	msg := newInvokeMessage(w, payload)
	route := observability.RouteNone

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = ipc.HandlerFailure(fmt.Errorf("handler panicked: %v", r))
				m.logger.Error("invoke handler panicked",
					"window", w.Label(), "command", msg.Command, "invoke_id", msg.ID, "error", r)
			}
		}()
		route, result, err = m.route(ctx, msg)
	}()

	outcome := observability.OutcomeOK
	switch {
	case err == nil:
	case ipc.KindOf(err) == ipc.KindRouting:
		outcome = observability.OutcomeNotFound
	default:
		outcome = observability.OutcomeError
	}
	observability.RecordInvoke(route, outcome)

	if err != nil {
		m.logger.Debug("invoke failed",
			"window", w.Label(), "command", msg.Command, "module", msg.Module,
			"invoke_id", msg.ID, "error", err)
	}
	m.respond(w, msg.callback, msg.errorCB, result, wrapHandlerError(err))
}

// route picks the single handler for msg.
func (m *Manager) route(ctx context.Context, msg *InvokeMessage) (string, any, error) {
	if msg.Module != "" {
		m.mu.RLock()
		h, ok := m.endpoints[msg.Module]
		m.mu.RUnlock()
		if !ok {
			return observability.RouteEndpoint, nil, ipc.CommandNotFound("module", msg.Module)
		}
		result, err := h.Invoke(ctx, msg)
		return observability.RouteEndpoint, result, err
	}

	if name, command, ok := ipc.SplitPluginCommand(msg.Command); ok {
		p, found := m.plugins.Get(name)
		if !found {
			return observability.RoutePlugin, nil, ipc.CommandNotFound("plugin", name)
		}
		result, err := p.ExtendAPI(ctx, pluginCall{msg: msg, command: command})
		return observability.RoutePlugin, result, err
	}

	m.mu.RLock()
	h := m.invokeHandler
	m.mu.RUnlock()
	if h == nil {
		return observability.RouteGlobal, nil, ipc.CommandNotFound("command", msg.Command)
	}
	result, err := h.Invoke(ctx, msg)
	return observability.RouteGlobal, result, err
}

func wrapHandlerError(err error) error {
	if err == nil || ipc.KindOf(err) != 0 {
		return err
	}
	return ipc.HandlerFailure(err)
}

// respond completes a page-side call: result goes to cb, or the public
// message of err goes to errCB. Empty ids mean the page is not waiting.
func (m *Manager) respond(w *Window, cb, errCB ipc.CallbackID, result any, err error) {
	if err == nil {
		if cb == "" {
			return
		}
		script, serr := ipc.CallbackScript(cb, result)
		if serr == nil {
			m.eval(w, script)
			return
		}
		err = serr
	}

	if errCB == "" {
		return
	}
	script, serr := ipc.CallbackScript(errCB, ipc.Public(err))
	if serr != nil {
		return
	}
	m.eval(w, script)
}

func (m *Manager) eval(w *Window, script string) {
	if err := w.EvalScript(script); err != nil {
		m.logger.Debug("failed to deliver response", "window", w.Label(), "error", err)
	}
}

// runOnPageLoad records the load and runs page-load handlers and plugins.
func (m *Manager) runOnPageLoad(w *Window, payload ipc.InvokePayload) {
	pl, err := payload.PageLoad()
	if err != nil {
		m.eval(w, ipc.ConsoleErrorScript(err.Error()))
		return
	}
	w.loads.Add(1)
	observability.RecordInvoke(observability.RoutePageLoad, observability.OutcomeOK)
	m.logger.Debug("page loaded", "window", w.Label(), "url", pl.URL)

	m.mu.RLock()
	handlers := append([]PageLoadHandler(nil), m.pageLoad...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(w, pl)
	}
	m.plugins.OnPageLoad(w.Label(), pl.URL)
}

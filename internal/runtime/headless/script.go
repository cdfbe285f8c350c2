package headless

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/jmylchreest/hostbridge/internal/runtime"
)

const defaultScheme = "app"

var (
	scriptTag = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script\s*>`)
	srcAttr   = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']([^"']+)["']`)
	typeAttr  = regexp.MustCompile(`(?i)\btype\s*=\s*["']([^"']+)["']`)
)

// href returns the document address of u.
func (w *window) href(u runtime.WindowURL) string {
	switch u.Kind {
	case runtime.URLApp:
		scheme := defaultScheme
		if w.protocol != nil {
			scheme = w.protocol.Scheme
		}
		return scheme + "://localhost/" + u.Value
	case runtime.URLHTML:
		return "about:blank"
	default:
		return u.Value
	}
}

// load replaces the script context with a fresh one for u. Runs on the loop.
func (w *window) load(u runtime.WindowURL) {
	w.stopTimers()

	href := w.href(u)
	w.url = u
	w.state.URL = href
	w.state.Loads++
	w.vm = w.newVM(href)
	w.recordOp("load " + href)

	for i, script := range w.initScripts {
		w.run(fmt.Sprintf("init script %d", i), script)
	}

	var doc string
	switch u.Kind {
	case runtime.URLHTML:
		doc = u.Value
	default:
		data, err := w.fetch(href)
		if err != nil {
			if !errors.Is(err, runtime.ErrNotHandled) {
				w.engine.logger.Warn("failed to load document", "window", w.label, "url", href, "error", err)
				w.recordConsole("error: failed to load " + href)
			}
			return
		}
		doc = string(data)
	}
	w.runDocument(href, doc)
}

// fetch reads target through the window's custom protocol. Other schemes are
// not fetched.
func (w *window) fetch(target string) ([]byte, error) {
	if w.protocol == nil || w.protocol.Handler == nil {
		return nil, runtime.ErrNotHandled
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != w.protocol.Scheme {
		return nil, runtime.ErrNotHandled
	}
	return w.protocol.Handler.HandleProtocol(target)
}

// runDocument executes the document's scripts in order. External scripts are
// fetched through the custom protocol.
func (w *window) runDocument(href, doc string) {
	base, _ := url.Parse(href)
	for _, m := range scriptTag.FindAllStringSubmatch(doc, -1) {
		attrs, body := m[1], m[2]

		if t := typeAttr.FindStringSubmatch(attrs); t != nil && !isScriptType(t[1]) {
			continue
		}

		src := srcAttr.FindStringSubmatch(attrs)
		if src == nil {
			w.run("inline script", body)
			continue
		}

		target := src[1]
		if base != nil {
			if ref, err := url.Parse(target); err == nil {
				target = base.ResolveReference(ref).String()
			}
		}
		data, err := w.fetch(target)
		if err != nil {
			w.recordConsole("error: failed to load script " + target)
			continue
		}
		w.run(target, string(data))
	}
}

func isScriptType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}

// run executes source in the current script context.
func (w *window) run(name, source string) {
	if w.vm == nil {
		return
	}
	if _, err := w.vm.RunScript(name, source); err != nil {
		w.scriptError(err)
	}
}

// eval executes a host-queued script.
func (w *window) eval(script string) {
	w.run("eval", script)
}

func (w *window) scriptError(err error) {
	msg := err.Error()
	var ex *goja.Exception
	if errors.As(err, &ex) {
		msg = ex.Value().String()
	}
	w.recordConsole("error: " + msg)
	w.engine.logger.Debug("page script error", "window", w.label, "error", msg)
}

func (w *window) newVM(href string) *goja.Runtime {
	vm := goja.New()
	global := vm.GlobalObject()
	_ = vm.Set("window", global)
	_ = vm.Set("self", global)

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, w.consoleFunc(level))
	}
	_ = vm.Set("console", console)

	location := vm.NewObject()
	_ = location.Set("href", href)
	_ = location.Set("reload", func(goja.FunctionCall) goja.Value {
		_ = w.engine.enqueue(w, func() { w.load(w.url) })
		return goja.Undefined()
	})
	_ = vm.Set("location", location)

	document := vm.NewObject()
	_ = document.Set("title", w.state.Title)
	_ = vm.Set("document", document)

	bridge := vm.NewObject()
	_ = bridge.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		raw := call.Argument(0).String()
		if err := runtime.DeliverInvoke(w.detached(), w.invoke, raw); err != nil {
			w.engine.logger.Debug("rejected page message", "window", w.label, "error", err)
		}
		return goja.Undefined()
	})
	_ = vm.Set("ipc", bridge)

	_ = vm.Set("setTimeout", w.setTimeout(vm))
	_ = vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).ToInteger()
		if t, ok := w.timers[id]; ok {
			t.Stop()
			delete(w.timers, id)
		}
		return goja.Undefined()
	})

	return vm
}

func (w *window) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatValue(arg))
		}
		line := level + ": " + strings.Join(parts, " ")
		w.recordConsole(line)
		w.engine.logger.Debug("page console", "window", w.label, "level", level, "message", strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	switch exported := v.Export().(type) {
	case string:
		return exported
	case map[string]any, []any:
		if data, err := json.Marshal(exported); err == nil {
			return string(data)
		}
	}
	return v.String()
}

// setTimeout schedules fn on the loop after the delay. Timers die with the
// script context that created them.
func (w *window) setTimeout(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond

		w.nextID++
		id := w.nextID
		w.timers[id] = time.AfterFunc(delay, func() {
			_ = w.engine.enqueue(w, func() {
				if w.vm != vm {
					return
				}
				if _, live := w.timers[id]; !live {
					return
				}
				delete(w.timers, id)
				if _, err := fn(goja.Undefined()); err != nil {
					w.scriptError(err)
				}
			})
		})
		return vm.ToValue(id)
	}
}

func (w *window) stopTimers() {
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hostbridge/internal/app"
	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// opRuntime realizes windows whose dispatchers record every operation.
type opRuntime struct {
	mu      sync.Mutex
	ops     map[string][]string
	scripts map[string][]string
}

func (r *opRuntime) CreateWindow(p *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	if err := p.Consume(); err != nil {
		return runtime.DetachedWindow{}, err
	}
	return runtime.DetachedWindow{Label: p.Label, Dispatcher: &opDispatcher{rt: r, label: p.Label}}, nil
}

func (r *opRuntime) Run() error { return nil }
func (r *opRuntime) Exit()      {}

func (r *opRuntime) record(label, op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[label] = append(r.ops[label], op)
	return nil
}

func (r *opRuntime) eval(label, script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[label] = append(r.scripts[label], script)
	return nil
}

func (r *opRuntime) scriptsFor(label string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.scripts[label]...)
}

func (r *opRuntime) opsFor(label string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops[label]...)
}

type opDispatcher struct {
	rt    *opRuntime
	label string
}

func (d *opDispatcher) rec(format string, args ...any) error {
	return d.rt.record(d.label, fmt.Sprintf(format, args...))
}

func (d *opDispatcher) CreateWindow(p *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	return d.rt.CreateWindow(p)
}

func (d *opDispatcher) SetResizable(v bool) error    { return d.rec("setResizable %t", v) }
func (d *opDispatcher) SetTitle(v string) error      { return d.rec("setTitle %s", v) }
func (d *opDispatcher) Maximize() error              { return d.rec("maximize") }
func (d *opDispatcher) Unmaximize() error            { return d.rec("unmaximize") }
func (d *opDispatcher) Minimize() error              { return d.rec("minimize") }
func (d *opDispatcher) Unminimize() error            { return d.rec("unminimize") }
func (d *opDispatcher) Show() error                  { return d.rec("show") }
func (d *opDispatcher) Hide() error                  { return d.rec("hide") }
func (d *opDispatcher) Close() error                 { return d.rec("close") }
func (d *opDispatcher) SetDecorations(v bool) error  { return d.rec("setDecorations %t", v) }
func (d *opDispatcher) SetAlwaysOnTop(v bool) error  { return d.rec("setAlwaysOnTop %t", v) }
func (d *opDispatcher) SetWidth(v int) error         { return d.rec("setWidth %d", v) }
func (d *opDispatcher) SetHeight(v int) error        { return d.rec("setHeight %d", v) }
func (d *opDispatcher) Resize(w, h int) error        { return d.rec("resize %dx%d", w, h) }
func (d *opDispatcher) SetMinSize(w, h int) error    { return d.rec("setMinSize %dx%d", w, h) }
func (d *opDispatcher) SetMaxSize(w, h int) error    { return d.rec("setMaxSize %dx%d", w, h) }
func (d *opDispatcher) SetX(v int) error             { return d.rec("setX %d", v) }
func (d *opDispatcher) SetY(v int) error             { return d.rec("setY %d", v) }
func (d *opDispatcher) SetPosition(x, y int) error   { return d.rec("setPosition %d,%d", x, y) }
func (d *opDispatcher) SetFullscreen(v bool) error   { return d.rec("setFullscreen %t", v) }
func (d *opDispatcher) SetIcon(i runtime.Icon) error { return d.rec("setIcon %s%d", i.Path, len(i.Raw)) }
func (d *opDispatcher) EvalScript(s string) error    { return d.rt.eval(d.label, s) }

func newManager(t *testing.T, labels ...string) (*app.Manager, *opRuntime) {
	t.Helper()
	rt := &opRuntime{ops: make(map[string][]string), scripts: make(map[string][]string)}
	m, err := app.NewManager(rt, app.Options{Package: app.PackageInfo{Name: "Demo", Version: "1.0.0"}})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	for _, label := range labels {
		_, err := m.CreateWindow(runtime.NewPendingWindow(label, runtime.AppURL(""), runtime.DefaultAttributes()))
		require.NoError(t, err)
	}
	Register(m, Options{})
	return m, rt
}

func invoke(t *testing.T, m *app.Manager, window, module, command string, args any) (any, error) {
	t.Helper()
	w, ok := m.GetWindow(window)
	require.True(t, ok)

	var inner json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		require.NoError(t, err)
		inner = data
	}

	var h app.InvokeHandler
	switch module {
	case ModuleWindow:
		h = newWindowModule(m, defaultPending)
	case ModuleEvent:
		h = newEventModule(m)
	case ModuleInternal:
		h = newInternalModule(m)
	case ModuleApp:
		h = newAppModule(m)
	}
	require.NotNil(t, h)
	return h.Invoke(context.Background(), &app.InvokeMessage{Window: w, Command: command, Module: module, Inner: inner})
}

// invokeOn calls command on an existing module instance.
func invokeOn(t *testing.T, m *app.Manager, h app.InvokeHandler, window, command string, args any) (any, error) {
	t.Helper()
	w, ok := m.GetWindow(window)
	require.True(t, ok)
	data, err := json.Marshal(args)
	require.NoError(t, err)
	return h.Invoke(context.Background(), &app.InvokeMessage{Window: w, Command: command, Module: ModuleEvent, Inner: data})
}

// callbackCalls returns the scripts that called page callback cb.
func callbackCalls(scripts []string, cb string) []string {
	var out []string
	marker := fmt.Sprintf(`window[%q](`, cb)
	for _, s := range scripts {
		if strings.Contains(s, marker) {
			out = append(out, s)
		}
	}
	return out
}

func TestWindowModule_Operations(t *testing.T) {
	m, rt := newManager(t, "main")

	tests := []struct {
		command string
		args    any
		want    string
	}{
		{"setResizable", map[string]any{"value": false}, "setResizable false"},
		{"setDecorations", map[string]any{"value": true}, "setDecorations true"},
		{"setAlwaysOnTop", map[string]any{"value": true}, "setAlwaysOnTop true"},
		{"setFullscreen", map[string]any{"value": true}, "setFullscreen true"},
		{"setTitle", map[string]any{"value": "Hello"}, "setTitle Hello"},
		{"maximize", nil, "maximize"},
		{"unmaximize", nil, "unmaximize"},
		{"minimize", nil, "minimize"},
		{"unminimize", nil, "unminimize"},
		{"show", nil, "show"},
		{"hide", nil, "hide"},
		{"setWidth", map[string]any{"value": 640}, "setWidth 640"},
		{"setHeight", map[string]any{"value": 480}, "setHeight 480"},
		{"setX", map[string]any{"value": 5}, "setX 5"},
		{"setY", map[string]any{"value": 6}, "setY 6"},
		{"resize", map[string]any{"width": 1, "height": 2}, "resize 1x2"},
		{"setMinSize", map[string]any{"width": 100, "height": 50}, "setMinSize 100x50"},
		{"setMaxSize", map[string]any{"width": 0, "height": 0}, "setMaxSize 0x0"},
		{"setPosition", map[string]any{"x": 10, "y": 20}, "setPosition 10,20"},
		{"setIcon", map[string]any{"path": "/icon.png"}, "setIcon /icon.png0"},
		{"close", nil, "close"},
	}

	var want []string
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			_, err := invoke(t, m, "main", ModuleWindow, tt.command, tt.args)
			require.NoError(t, err)
		})
		want = append(want, tt.want)
	}
	assert.Equal(t, want, rt.opsFor("main"))
}

func TestWindowModule_TargetsOtherWindow(t *testing.T) {
	m, rt := newManager(t, "main", "settings")

	_, err := invoke(t, m, "main", ModuleWindow, "setTitle", map[string]any{"label": "settings", "value": "Prefs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"setTitle Prefs"}, rt.opsFor("settings"))
	assert.Empty(t, rt.opsFor("main"))

	_, err = invoke(t, m, "main", ModuleWindow, "show", map[string]any{"label": "missing"})
	assert.ErrorIs(t, err, app.ErrWindowNotFound)
}

func TestWindowModule_Errors(t *testing.T) {
	m, _ := newManager(t, "main")

	_, err := invoke(t, m, "main", ModuleWindow, "teleport", nil)
	assert.Equal(t, ipc.KindRouting, ipc.KindOf(err))

	_, err = invoke(t, m, "main", ModuleWindow, "setTitle", nil)
	assert.Equal(t, ipc.KindSerialization, ipc.KindOf(err))

	_, err = invoke(t, m, "main", ModuleWindow, "setIcon", map[string]any{})
	assert.Equal(t, ipc.KindSerialization, ipc.KindOf(err))
}

func TestWindowModule_SetIconBytes(t *testing.T) {
	m, rt := newManager(t, "main")

	_, err := invoke(t, m, "main", ModuleWindow, "setIcon", map[string]any{"bytes": []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []string{"setIcon 3"}, rt.opsFor("main"))
}

func TestWindowModule_CreateWebview(t *testing.T) {
	m, _ := newManager(t, "main")

	result, err := invoke(t, m, "main", ModuleWindow, "createWebview", map[string]any{
		"label": "child",
		"url":   "https://example.com",
		"width": 300,
	})
	require.NoError(t, err)
	assert.Equal(t, createResult{Label: "child"}, result)

	_, ok := m.GetWindow("child")
	assert.True(t, ok)

	_, err = invoke(t, m, "main", ModuleWindow, "createWebview", map[string]any{"label": "child"})
	assert.ErrorIs(t, err, app.ErrLabelExists)

	_, err = invoke(t, m, "main", ModuleWindow, "createWebview", map[string]any{"url": "x"})
	assert.Equal(t, ipc.KindSerialization, ipc.KindOf(err))
}

func TestEventModule_EmitTriggersHost(t *testing.T) {
	m, _ := newManager(t, "main", "other")

	var got []event.Event
	m.Listen("saved", "main", func(e event.Event) { got = append(got, e) })
	m.Listen("saved", "other", func(e event.Event) { got = append(got, e) })

	_, err := invoke(t, m, "main", ModuleEvent, "emit", map[string]any{"event": "saved", "payload": map[string]int{"n": 1}})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "main", got[0].Window)
	assert.JSONEq(t, `{"n":1}`, string(got[0].Payload))
}

func TestEventModule_Broadcast(t *testing.T) {
	m, _ := newManager(t, "main", "other")

	var windows []string
	m.Listen("sync", "", func(e event.Event) { windows = append(windows, e.Window) })

	_, err := invoke(t, m, "main", ModuleEvent, "emit", map[string]any{"event": "sync", "broadcast": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "other"}, windows)
}

func TestEventModule_MissingEvent(t *testing.T) {
	m, _ := newManager(t, "main")
	_, err := invoke(t, m, "main", ModuleEvent, "emit", map[string]any{"payload": 1})
	assert.Equal(t, ipc.KindSerialization, ipc.KindOf(err))
}

func TestEventModule_ListenDeliversToPage(t *testing.T) {
	m, rt := newManager(t, "main", "other")
	mod := newEventModule(m)

	_, err := invokeOn(t, m, mod, "main", "listen", map[string]any{"event": "saved", "handler": "own"})
	require.NoError(t, err)
	_, err = invokeOn(t, m, mod, "main", "listen", map[string]any{"event": "saved", "handler": "all", "window": AnyWindow})
	require.NoError(t, err)

	require.NoError(t, m.Trigger("saved", "main", map[string]int{"n": 1}))
	require.NoError(t, m.Trigger("saved", "other", map[string]int{"n": 2}))

	own := callbackCalls(rt.scriptsFor("main"), "own")
	require.Len(t, own, 1, "scoped listener only sees its own window")
	assert.Contains(t, own[0], `"windowLabel":"main"`)
	assert.Contains(t, own[0], `"payload":{"n":1}`)

	assert.Len(t, callbackCalls(rt.scriptsFor("main"), "all"), 2)
	assert.Empty(t, callbackCalls(rt.scriptsFor("other"), "all"), "callbacks run in the registering window")
}

func TestEventModule_Unlisten(t *testing.T) {
	m, rt := newManager(t, "main", "other")
	mod := newEventModule(m)

	id, err := invokeOn(t, m, mod, "main", "listen", map[string]any{"event": "saved", "handler": "cb"})
	require.NoError(t, err)

	removed, err := invokeOn(t, m, mod, "other", "unlisten", map[string]any{"id": id})
	require.NoError(t, err)
	assert.Equal(t, false, removed, "a window cannot remove another window's listener")

	removed, err = invokeOn(t, m, mod, "main", "unlisten", map[string]any{"id": id})
	require.NoError(t, err)
	assert.Equal(t, true, removed)

	require.NoError(t, m.Trigger("saved", "main", nil))
	assert.Empty(t, callbackCalls(rt.scriptsFor("main"), "cb"))
}

func TestEventModule_ListenersDroppedOnClose(t *testing.T) {
	m, _ := newManager(t, "main")
	mod := newEventModule(m)

	_, err := invokeOn(t, m, mod, "main", "listen", map[string]any{"event": "saved", "handler": "cb", "window": AnyWindow})
	require.NoError(t, err)

	m.WindowClosed("main")
	assert.Zero(t, m.Bus().Len("saved"))
}

func TestEventModule_ListenErrors(t *testing.T) {
	m, _ := newManager(t, "main")
	mod := newEventModule(m)

	_, err := invokeOn(t, m, mod, "main", "listen", map[string]any{"event": "saved"})
	assert.Equal(t, ipc.KindSerialization, ipc.KindOf(err))

	_, err = invokeOn(t, m, mod, "main", "listen", map[string]any{"event": "bad name", "handler": "cb"})
	assert.Equal(t, ipc.KindSerialization, ipc.KindOf(err))
}

func TestInternalModule_ValidateSalt(t *testing.T) {
	m, _ := newManager(t, "main", "other")
	s := m.GenerateSalt("main")

	valid, err := invoke(t, m, "other", ModuleInternal, "validateSalt", map[string]any{"salt": s})
	require.NoError(t, err)
	assert.Equal(t, false, valid)

	valid, err = invoke(t, m, "main", ModuleInternal, "validateSalt", map[string]any{"salt": s})
	require.NoError(t, err)
	assert.Equal(t, true, valid)

	valid, err = invoke(t, m, "main", ModuleInternal, "validateSalt", map[string]any{"salt": s})
	require.NoError(t, err)
	assert.Equal(t, false, valid)
}

func TestAppModule(t *testing.T) {
	m, _ := newManager(t, "main")

	name, err := invoke(t, m, "main", ModuleApp, "getName", nil)
	require.NoError(t, err)
	assert.Equal(t, "Demo", name)

	version, err := invoke(t, m, "main", ModuleApp, "getVersion", nil)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)

	info, err := invoke(t, m, "main", ModuleApp, "getPackageInfo", nil)
	require.NoError(t, err)
	assert.Equal(t, app.PackageInfo{Name: "Demo", Version: "1.0.0"}, info)
}

func TestModule_Commands(t *testing.T) {
	m, _ := newManager(t)
	assert.Equal(t, []string{"getName", "getPackageInfo", "getVersion"}, newAppModule(m).Commands())
	assert.Len(t, newWindowModule(m, defaultPending).Commands(), 22)
	assert.Equal(t, []string{"emit", "listen", "unlisten"}, newEventModule(m).Commands())
}

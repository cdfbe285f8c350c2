package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/model"
	"github.com/jmylchreest/hostbridge/internal/plugin"
	"github.com/jmylchreest/hostbridge/internal/runtime"
	"github.com/jmylchreest/hostbridge/internal/worker"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

// fakeRuntime realizes windows as recording dispatchers.
type fakeRuntime struct {
	mu      sync.Mutex
	windows map[string]*fakeDispatcher
	created int
	fail    error
	gate    chan struct{} // When set, CreateWindow blocks until closed
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{windows: make(map[string]*fakeDispatcher)}
}

func (r *fakeRuntime) CreateWindow(p *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	if err := p.Consume(); err != nil {
		return runtime.DetachedWindow{}, err
	}
	if r.gate != nil {
		<-r.gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return runtime.DetachedWindow{}, r.fail
	}
	d := &fakeDispatcher{rt: r, label: p.Label, pending: p}
	r.windows[p.Label] = d
	r.created++
	return runtime.DetachedWindow{Label: p.Label, Dispatcher: d}, nil
}

func (r *fakeRuntime) Run() error { return nil }
func (r *fakeRuntime) Exit()      {}

func (r *fakeRuntime) dispatcher(label string) *fakeDispatcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windows[label]
}

type fakeDispatcher struct {
	runtime.Dispatcher

	rt      *fakeRuntime
	label   string
	pending *runtime.PendingWindow

	mu      sync.Mutex
	scripts []string
	closed  bool
}

func (d *fakeDispatcher) CreateWindow(p *runtime.PendingWindow) (runtime.DetachedWindow, error) {
	return d.rt.CreateWindow(p)
}

func (d *fakeDispatcher) EvalScript(script string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return runtime.ErrDelivery
	}
	d.scripts = append(d.scripts, script)
	return nil
}

func (d *fakeDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return runtime.ErrDelivery
	}
	d.closed = true
	d.mu.Unlock()
	d.pending.CloseHandler.WindowClosed(d.label)
	return nil
}

func (d *fakeDispatcher) Scripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scripts...)
}

// post simulates the page posting a raw message.
func (d *fakeDispatcher) post(t *testing.T, m *Manager, payload ipc.InvokePayload) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	dw := runtime.DetachedWindow{Label: d.label, Dispatcher: d}
	require.NoError(t, runtime.DeliverInvoke(dw, d.pending.InvokeHandler, string(data)))
	m.pool.Wait()
}

type harness struct {
	m  *Manager
	rt *fakeRuntime
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rt := newFakeRuntime()
	m, err := NewManager(rt, Options{Pool: worker.NewPool(2, nil)})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return &harness{m: m, rt: rt}
}

func (h *harness) open(t *testing.T, label string) (*Window, *fakeDispatcher) {
	t.Helper()
	w, err := h.m.CreateWindow(runtime.NewPendingWindow(label, runtime.AppURL("index.html"), runtime.DefaultAttributes()))
	require.NoError(t, err)
	return w, h.rt.dispatcher(label)
}

// initialize runs the page-load handshake and returns the salt handed to the page.
func (h *harness) initialize(t *testing.T, d *fakeDispatcher) string {
	t.Helper()
	d.post(t, h.m, ipc.InvokePayload{Command: ipc.CommandInitialized, Inner: json.RawMessage(`{"url":"app://localhost/index.html"}`)})
	return h.currentSalt(t, d)
}

// currentSalt extracts the most recent salt pushed to the page.
func (h *harness) currentSalt(t *testing.T, d *fakeDispatcher) string {
	t.Helper()
	prefix := fmt.Sprintf(`window[%q]("`, h.m.names.SetSalt)
	scripts := d.Scripts()
	for i := len(scripts) - 1; i >= 0; i-- {
		if s, ok := strings.CutPrefix(scripts[i], prefix); ok {
			return strings.TrimSuffix(s, `")`)
		}
	}
	t.Fatalf("no salt delivered to %q", d.label)
	return ""
}

// callbackArg returns the argument a page callback was invoked with.
func callbackArg(t *testing.T, d *fakeDispatcher, cb string) (string, bool) {
	t.Helper()
	marker := fmt.Sprintf(`{ window[%q](`, cb)
	for _, s := range d.Scripts() {
		if _, rest, ok := strings.Cut(s, marker); ok {
			arg, _, _ := strings.Cut(rest, `) } else`)
			return arg, true
		}
	}
	return "", false
}

func call(command, module, salt string, inner any) ipc.InvokePayload {
	data, _ := json.Marshal(inner)
	return ipc.InvokePayload{
		Command:  command,
		Module:   module,
		Callback: "ok",
		Error:    "fail",
		Inner:    data,
		Salt:     salt,
	}
}

func TestCreateWindow_RegistersAndInstallsBridge(t *testing.T) {
	h := newHarness(t)
	w, d := h.open(t, "main")

	assert.Equal(t, "main", w.Label())
	got, ok := h.m.GetWindow("main")
	require.True(t, ok)
	assert.True(t, got.Equal(w))

	scripts := d.pending.Attributes.InitScripts
	require.NotEmpty(t, scripts)
	assert.Contains(t, scripts[0], h.m.names.Emit)
	assert.Contains(t, scripts[0], h.m.names.SetSalt)
}

func TestCreateWindow_DuplicateLabelRejected(t *testing.T) {
	h := newHarness(t)
	h.open(t, "main")

	_, err := h.m.CreateWindow(runtime.NewPendingWindow("main", runtime.AppURL(""), runtime.DefaultAttributes()))
	assert.ErrorIs(t, err, ErrLabelExists)
	assert.Len(t, h.m.Windows(), 1)
}

func TestCreateWindow_ConcurrentSameLabel(t *testing.T) {
	h := newHarness(t)
	h.rt.gate = make(chan struct{})

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		errs    []error
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.m.CreateWindow(runtime.NewPendingWindow("main", runtime.AppURL(""), runtime.DefaultAttributes()))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			success++
		}()
	}

	// Losers fail on the reservation without reaching the engine.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == n-1
	}, timeout, tick)
	close(h.rt.gate)
	wg.Wait()

	assert.Equal(t, 1, success)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrLabelExists)
	}
	assert.Equal(t, 1, h.rt.created)
	assert.Len(t, h.m.Windows(), 1)
}

func TestCreateWindow_EngineFailureLeavesNothing(t *testing.T) {
	h := newHarness(t)
	h.rt.fail = errors.New("no display")

	_, err := h.m.CreateWindow(runtime.NewPendingWindow("main", runtime.AppURL(""), runtime.DefaultAttributes()))
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrCreateWindow)
	assert.Empty(t, h.m.Windows())

	// The label is free again.
	h.rt.fail = nil
	h.open(t, "main")
}

func TestCreateWindow_EmptyLabel(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.CreateWindow(runtime.NewPendingWindow("", runtime.AppURL(""), runtime.DefaultAttributes()))
	assert.ErrorIs(t, err, ErrEmptyLabel)
	assert.ErrorIs(t, err, runtime.ErrCreateWindow)
}

func TestCreateWindow_ThroughDispatcher(t *testing.T) {
	h := newHarness(t)
	main, _ := h.open(t, "main")

	child, err := main.CreateWindow(runtime.NewPendingWindow("child", runtime.AppURL(""), runtime.DefaultAttributes()))
	require.NoError(t, err)
	assert.Equal(t, "child", child.Label())
	assert.Len(t, h.m.Windows(), 2)
}

func TestInvoke_WithoutHandshakeIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	_, d := h.open(t, "main")

	called := false
	h.m.SetInvokeHandler(InvokeHandlerFunc(func(context.Context, *InvokeMessage) (any, error) {
		called = true
		return nil, nil
	}))

	d.post(t, h.m, call("greet", "", "", nil))

	assert.False(t, called)
	arg, ok := callbackArg(t, d, "fail")
	require.True(t, ok)
	assert.Equal(t, `"unauthorized"`, arg)
}

func TestInvoke_RejectionHandsOutFreshSalt(t *testing.T) {
	h := newHarness(t)
	_, d := h.open(t, "main")

	h.m.SetInvokeHandler(InvokeHandlerFunc(func(context.Context, *InvokeMessage) (any, error) {
		return "ok", nil
	}))

	stale := h.initialize(t, d)
	d.post(t, h.m, call("x", "", "expired-"+stale, nil))

	arg, ok := callbackArg(t, d, "fail")
	require.True(t, ok)
	assert.Equal(t, `"unauthorized"`, arg)

	// The rejected submission used up the bridge's salt, so a new one is issued
	// and the one it replaced is gone.
	fresh := h.currentSalt(t, d)
	assert.NotEqual(t, stale, fresh)
	assert.False(t, h.m.VerifySalt("main", stale))

	d.post(t, h.m, call("x", "", fresh, nil))
	arg, ok = callbackArg(t, d, "ok")
	require.True(t, ok)
	assert.Equal(t, `"ok"`, arg)
}

func TestInvoke_GlobalHandlerAndRotation(t *testing.T) {
	h := newHarness(t)
	_, d := h.open(t, "main")

	h.m.SetInvokeHandler(InvokeHandlerFunc(func(_ context.Context, msg *InvokeMessage) (any, error) {
		var args struct {
			Name string `json:"name"`
		}
		if err := msg.Decode(&args); err != nil {
			return nil, err
		}
		return "hello " + args.Name + " from " + msg.Window.Label(), nil
	}))

	s1 := h.initialize(t, d)
	d.post(t, h.m, call("greet", "", s1, map[string]string{"name": "ada"}))

	arg, ok := callbackArg(t, d, "ok")
	require.True(t, ok)
	assert.Equal(t, `"hello ada from main"`, arg)

	s2 := h.currentSalt(t, d)
	assert.NotEqual(t, s1, s2)

	// Replaying the consumed salt fails closed.
	d.post(t, h.m, call("greet", "", s1, map[string]string{"name": "eve"}))
	arg, ok = callbackArg(t, d, "fail")
	require.True(t, ok)
	assert.Equal(t, `"unauthorized"`, arg)
}

func TestInvoke_SaltBoundToWindow(t *testing.T) {
	h := newHarness(t)
	_, d1 := h.open(t, "one")
	_, d2 := h.open(t, "two")

	h.m.SetInvokeHandler(InvokeHandlerFunc(func(context.Context, *InvokeMessage) (any, error) {
		return true, nil
	}))

	s1 := h.initialize(t, d1)
	h.initialize(t, d2)

	d2.post(t, h.m, call("x", "", s1, nil))
	arg, ok := callbackArg(t, d2, "fail")
	require.True(t, ok)
	assert.Equal(t, `"unauthorized"`, arg)
}

func TestInvoke_PageLoadRevokesSalts(t *testing.T) {
	h := newHarness(t)
	w, d := h.open(t, "main")

	var loads []string
	h.m.OnPageLoad(func(w *Window, pl ipc.PageLoadPayload) {
		loads = append(loads, w.Label()+" "+pl.URL)
	})
	h.m.SetInvokeHandler(InvokeHandlerFunc(func(context.Context, *InvokeMessage) (any, error) {
		return true, nil
	}))

	old := h.initialize(t, d)
	fresh := h.initialize(t, d)
	assert.NotEqual(t, old, fresh)
	assert.Equal(t, 2, w.Info().Loads)
	assert.Equal(t, []string{"main app://localhost/index.html", "main app://localhost/index.html"}, loads)

	d.post(t, h.m, call("x", "", old, nil))
	_, ok := callbackArg(t, d, "fail")
	assert.True(t, ok)
}

func TestInvoke_Routing(t *testing.T) {
	h := newHarness(t)
	_, d := h.open(t, "main")

	var (
		mu     sync.Mutex
		routes []string
	)
	record := func(route string) InvokeHandlerFunc {
		return func(_ context.Context, msg *InvokeMessage) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			routes = append(routes, route+":"+msg.Command)
			return route, nil
		}
	}
	h.m.RegisterEndpoint("Window", record("endpoint"))
	h.m.SetInvokeHandler(record("global"))
	require.NoError(t, h.m.RegisterPlugin(&echoPlugin{}))

	tests := []struct {
		name    string
		command string
		module  string
		wantOK  string
		wantErr string
	}{
		{name: "module", command: "setTitle", module: "Window", wantOK: `"endpoint"`},
		{name: "plugin", command: "plugin:echo|say", wantOK: `"say@main"`},
		{name: "global", command: "greet", wantOK: `"global"`},
		{name: "unknown module", command: "x", module: "Dialog", wantErr: `"module \"Dialog\" not found"`},
		{name: "unknown plugin", command: "plugin:nope|x", wantErr: `"plugin \"nope\" not found"`},
	}

	s := h.initialize(t, d)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(d.Scripts())
			p := call(tt.command, tt.module, s, nil)
			p.Callback = ipc.CallbackID("ok_" + strings.ReplaceAll(tt.name, " ", "_"))
			p.Error = ipc.CallbackID("fail_" + strings.ReplaceAll(tt.name, " ", "_"))
			d.post(t, h.m, p)
			s = h.currentSalt(t, d)
			require.Greater(t, len(d.Scripts()), before)

			okArg, gotOK := callbackArg(t, d, string(p.Callback))
			errArg, gotErr := callbackArg(t, d, string(p.Error))
			if tt.wantErr != "" {
				assert.False(t, gotOK)
				require.True(t, gotErr)
				assert.Equal(t, tt.wantErr, errArg)
				return
			}
			assert.False(t, gotErr)
			require.True(t, gotOK)
			assert.Equal(t, tt.wantOK, okArg)
		})
	}

	// Exactly one handler per routed call.
	assert.Equal(t, []string{"endpoint:setTitle", "global:greet"}, routes)
}

func TestInvoke_NoGlobalHandler(t *testing.T) {
	h := newHarness(t)
	_, d := h.open(t, "main")

	s := h.initialize(t, d)
	d.post(t, h.m, call("greet", "", s, nil))
	arg, ok := callbackArg(t, d, "fail")
	require.True(t, ok)
	assert.Equal(t, `"command \"greet\" not found"`, arg)
}

func TestInvoke_HandlerErrorAndPanic(t *testing.T) {
	h := newHarness(t)
	_, d := h.open(t, "main")

	h.m.SetInvokeHandler(InvokeHandlerFunc(func(_ context.Context, msg *InvokeMessage) (any, error) {
		if msg.Command == "boom" {
			panic("kaboom")
		}
		return nil, errors.New("disk full")
	}))

	s := h.initialize(t, d)
	d.post(t, h.m, call("save", "", s, nil))
	arg, ok := callbackArg(t, d, "fail")
	require.True(t, ok)
	assert.Equal(t, `"disk full"`, arg)

	p := call("boom", "", h.currentSalt(t, d), nil)
	p.Error = "fail_boom"
	d.post(t, h.m, p)
	arg, ok = callbackArg(t, d, "fail_boom")
	require.True(t, ok)
	assert.Contains(t, arg, "kaboom")
}

func TestInvoke_DecodeWithoutArgs(t *testing.T) {
	msg := &InvokeMessage{Command: "x"}
	var v struct{}
	err := msg.Decode(&v)
	assert.Equal(t, ipc.KindSerialization, ipc.KindOf(err))
}

func TestSetInvokeHandler_Replaces(t *testing.T) {
	h := newHarness(t)
	_, d := h.open(t, "main")

	h.m.SetInvokeHandler(InvokeHandlerFunc(func(context.Context, *InvokeMessage) (any, error) { return "first", nil }))
	h.m.SetInvokeHandler(InvokeHandlerFunc(func(context.Context, *InvokeMessage) (any, error) { return "second", nil }))

	s := h.initialize(t, d)
	d.post(t, h.m, call("x", "", s, nil))
	arg, ok := callbackArg(t, d, "ok")
	require.True(t, ok)
	assert.Equal(t, `"second"`, arg)
}

func TestWindowClosed_DropsMessages(t *testing.T) {
	h := newHarness(t)
	w, d := h.open(t, "main")

	called := false
	h.m.SetInvokeHandler(InvokeHandlerFunc(func(context.Context, *InvokeMessage) (any, error) {
		called = true
		return nil, nil
	}))
	h.m.Listen("ping", "main", func(event.Event) {})

	s := h.initialize(t, d)
	require.NoError(t, w.Close())

	_, ok := h.m.GetWindow("main")
	assert.False(t, ok)
	assert.Zero(t, h.m.salts.Len())
	assert.Zero(t, h.m.Bus().Len("ping"))

	dw := runtime.DetachedWindow{Label: "main", Dispatcher: d}
	h.m.HandleInvoke(dw, call("x", "", s, nil))
	h.m.pool.Wait()
	assert.False(t, called)

	assert.ErrorIs(t, w.EvalScript("1"), runtime.ErrDelivery)
}

func TestObserver_Lifecycle(t *testing.T) {
	h := newHarness(t)
	obs := &recordingObserver{}
	h.m.AddObserver(obs)

	w, _ := h.open(t, "main")
	require.NoError(t, w.Emit("ping", map[string]int{"n": 1}))
	require.NoError(t, w.Close())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.created, 1)
	assert.Equal(t, "main", obs.created[0].Label)
	assert.Equal(t, "index.html", obs.created[0].URL)
	assert.Equal(t, []string{"main"}, obs.closed)
	require.Len(t, obs.events, 1)
	assert.Equal(t, "ping", obs.events[0].Event)
	assert.Equal(t, []string{"main"}, obs.events[0].Targets)
	assert.Equal(t, model.SourceHost, obs.events[0].Source)
	assert.JSONEq(t, `{"n":1}`, string(obs.events[0].Payload))
}

type echoPlugin struct{ created []string }

func (p *echoPlugin) Name() string       { return "echo" }
func (p *echoPlugin) InitScript() string { return "window.__echo = true" }
func (p *echoPlugin) Created(w string)   { p.created = append(p.created, w) }

func (p *echoPlugin) ExtendAPI(_ context.Context, call plugin.Call) (any, error) {
	return call.Command() + "@" + call.Window(), nil
}

func TestPlugin_InitScriptAndCreated(t *testing.T) {
	h := newHarness(t)
	p := &echoPlugin{}
	require.NoError(t, h.m.RegisterPlugin(p))

	_, d := h.open(t, "main")
	scripts := d.pending.Attributes.InitScripts
	require.Len(t, scripts, 2)
	assert.Equal(t, "window.__echo = true", scripts[1])
	assert.Equal(t, []string{"main"}, p.created)
}

type recordingObserver struct {
	mu      sync.Mutex
	created []model.WindowInfo
	closed  []string
	events  []model.EventRecord
}

func (o *recordingObserver) WindowCreated(info model.WindowInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, info)
}

func (o *recordingObserver) WindowClosed(label string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, label)
}

func (o *recordingObserver) EventEmitted(rec model.EventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, rec)
}

package headless_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hostbridge/internal/app"
	"github.com/jmylchreest/hostbridge/internal/endpoints"
	"github.com/jmylchreest/hostbridge/internal/event"
	"github.com/jmylchreest/hostbridge/internal/runtime"
	"github.com/jmylchreest/hostbridge/internal/runtime/headless"
	"github.com/jmylchreest/hostbridge/internal/salt"
)

const (
	waitFor = 2 * time.Second
	poll    = 5 * time.Millisecond
)

type fixture struct {
	engine  *headless.Engine
	manager *app.Manager
}

var demo = app.PackageInfo{Name: "Demo", Version: "0.1.0"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, app.Options{Package: demo})
}

func newFixtureWith(t *testing.T, opts app.Options) *fixture {
	t.Helper()
	e := headless.New(nil)
	m, err := app.NewManager(e, opts)
	require.NoError(t, err)
	endpoints.Register(m, endpoints.Options{})
	t.Cleanup(func() {
		e.Exit()
		<-e.Done()
		m.Close()
	})
	return &fixture{engine: e, manager: m}
}

func (f *fixture) open(t *testing.T, label, html string) *app.Window {
	t.Helper()
	w, err := f.manager.CreateWindow(runtime.NewPendingWindow(label, runtime.HTMLContent(html), runtime.DefaultAttributes()))
	require.NoError(t, err)
	return w
}

// eventually polls a page expression until it equals want.
func (f *fixture) eventually(t *testing.T, label, expr string, want any) {
	t.Helper()
	var last any
	ok := assert.Eventually(t, func() bool {
		v, err := f.engine.Evaluate(label, expr)
		if err != nil {
			return false
		}
		last = v
		return assert.ObjectsAreEqualValues(want, v)
	}, waitFor, poll)
	if !ok {
		t.Logf("last value of %s: %#v; console: %v", expr, last, f.engine.Console(label))
	}
}

func TestBridge_InvokeGlobalHandler(t *testing.T) {
	f := newFixture(t)
	f.manager.SetInvokeHandler(app.InvokeHandlerFunc(func(_ context.Context, msg *app.InvokeMessage) (any, error) {
		var args struct {
			Name string `json:"name"`
		}
		if err := msg.Decode(&args); err != nil {
			return nil, err
		}
		return "hello " + args.Name, nil
	}))

	f.open(t, "main", `<script>
		window.results = [];
		var hb = window.__HOSTBRIDGE__;
		hb.invoke("greet", {name: "ada"}).then(function (r) { window.results.push(r); });
		hb.invoke("greet", {name: "bob"}).then(function (r) { window.results.push(r); });
	</script>`)

	// Responses may complete in either order.
	f.eventually(t, "main", "window.results.slice().sort().join(',')", "hello ada,hello bob")
}

func TestBridge_EndpointsAndPlugins(t *testing.T) {
	f := newFixture(t)

	f.open(t, "main", `<script>
		var hb = window.__HOSTBRIDGE__;
		hb.invokeModule("App", "getName").then(function (r) { window.appName = r; });
		hb.invokeModule("Window", "setTitle", {value: "Renamed"}).then(function () { window.titled = true; });
		hb.invokeModule("Dialog", "open").catch(function (e) { window.routing = e; });
		hb.invokePlugin("missing", "x").catch(function (e) { window.plugin = e; });
	</script>`)

	f.eventually(t, "main", "window.appName", "Demo")
	f.eventually(t, "main", "window.titled", true)
	f.eventually(t, "main", "window.routing", `module "Dialog" not found`)
	f.eventually(t, "main", "window.plugin", `plugin "missing" not found`)

	state, err := f.engine.State("main")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", state.Title)
}

func TestBridge_ForgedCallIsUnauthorized(t *testing.T) {
	f := newFixture(t)

	var (
		mu     sync.Mutex
		called bool
	)
	f.manager.SetInvokeHandler(app.InvokeHandlerFunc(func(context.Context, *app.InvokeMessage) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		called = true
		return nil, nil
	}))

	f.open(t, "main", `<script>
		window.forged = function (err) { window.denied = err; };
		window.ipc.postMessage(JSON.stringify({
			command: "delete_everything",
			callback: "forgedOk",
			error: "forged",
			inner: {},
			salt: "00000000-0000-0000-0000-000000000000"
		}));
	</script>`)

	f.eventually(t, "main", "window.denied", "unauthorized")
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, called)
}

func TestBridge_ExpiredSaltDoesNotStall(t *testing.T) {
	f := newFixtureWith(t, app.Options{
		Package: demo,
		Salts:   salt.NewRegistry(100 * time.Millisecond),
	})
	f.manager.SetInvokeHandler(app.InvokeHandlerFunc(func(_ context.Context, msg *app.InvokeMessage) (any, error) {
		return msg.Command, nil
	}))

	// Calls b and c are made after the salt the bridge holds has expired.
	f.open(t, "main", `<script>
		window.results = [];
		window.received = [];
		var hb = window.__HOSTBRIDGE__;
		function record(p) {
			p.then(function (r) { window.results.push(r); },
				function (e) { window.results.push("err:" + e); });
		}
		hb.listen("tick", function (e) { window.received.push(e.payload); });
		record(hb.invoke("a"));
		setTimeout(function () { record(hb.invoke("b")); }, 400);
		setTimeout(function () { record(hb.invoke("c")); }, 700);
	</script>`)

	f.eventually(t, "main", "window.results.join(',')", "a,b,c")

	// Host events validate through the bridge too.
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, f.manager.Emit("tick", 1))
	f.eventually(t, "main", "window.received.join(',')", "1")
}

func TestBridge_HostEmitReachesPage(t *testing.T) {
	f := newFixture(t)
	w := f.open(t, "main", `<script>
		window.received = [];
		window.__HOSTBRIDGE__.listen("ping", function (e) { window.received.push(e.payload.n); });
	</script>`)
	f.open(t, "other", `<script>
		window.received = [];
		window.__HOSTBRIDGE__.listen("ping", function (e) { window.received.push(e.payload.n); });
	</script>`)
	require.NoError(t, f.engine.Sync())

	require.NoError(t, w.Emit("ping", map[string]int{"n": 1}))
	require.NoError(t, w.Emit("ping", map[string]int{"n": 2}))
	require.NoError(t, f.manager.Emit("ping", map[string]int{"n": 3}))

	f.eventually(t, "main", "window.received.join(',')", "1,2,3")
	f.eventually(t, "other", "window.received.join(',')", "3")
}

func TestBridge_ForgedEmitIsDropped(t *testing.T) {
	f := newFixture(t)
	f.open(t, "main", `<script>
		window.received = 0;
		window.__HOSTBRIDGE__.listen("ping", function () { window.received++; });
		var emit = Object.keys(window).filter(function (k) { return k.indexOf("__hb_emit_") === 0; })[0];
		window[emit]({event: "ping", payload: null}, "forged-salt");
		window.__HOSTBRIDGE__.invokeModule("App", "getVersion").then(function (v) { window.version = v; });
	</script>`)

	// The version call is queued behind the validation call.
	f.eventually(t, "main", "window.version", "0.1.0")
	f.eventually(t, "main", "window.received", 0)
}

func TestBridge_PageEmitTriggersHost(t *testing.T) {
	f := newFixture(t)

	got := make(chan event.Event, 1)
	f.manager.Listen("saved", "main", func(e event.Event) { got <- e })

	f.open(t, "main", `<script>
		window.__HOSTBRIDGE__.emit("saved", {id: 7});
	</script>`)

	select {
	case e := <-got:
		assert.Equal(t, "main", e.Window)
		assert.JSONEq(t, `{"id":7}`, string(e.Payload))
	case <-time.After(waitFor):
		t.Fatal("host listener not triggered")
	}
}

func TestBridge_NavigationStartsFreshHandshake(t *testing.T) {
	f := newFixture(t)
	f.manager.SetInvokeHandler(app.InvokeHandlerFunc(func(context.Context, *app.InvokeMessage) (any, error) {
		return "pong", nil
	}))

	w := f.open(t, "main", `<script>
		window.__HOSTBRIDGE__.invoke("ping").then(function (r) { window.reply = r; });
	</script>`)
	f.eventually(t, "main", "window.reply", "pong")

	require.NoError(t, f.engine.Navigate("main", runtime.HTMLContent(`<script>
		window.__HOSTBRIDGE__.invoke("ping").then(function (r) { window.again = r; });
	</script>`)))
	f.eventually(t, "main", "window.again", "pong")

	require.Eventually(t, func() bool { return w.Info().Loads == 2 }, waitFor, poll)
}

func TestBridge_CloseDeregisters(t *testing.T) {
	f := newFixture(t)
	w := f.open(t, "main", "")
	require.NoError(t, f.engine.Sync())

	require.NoError(t, w.Close())
	require.NoError(t, f.engine.Sync())

	_, ok := f.manager.GetWindow("main")
	assert.False(t, ok)
	assert.ErrorIs(t, w.EvalScript("1"), runtime.ErrDelivery)
}

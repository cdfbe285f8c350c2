// Package endpoints implements the first-party modules reachable from page
// script through the module field of an inbound call.
package endpoints

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmylchreest/hostbridge/internal/app"
	"github.com/jmylchreest/hostbridge/internal/config"
	"github.com/jmylchreest/hostbridge/internal/ipc"
	"github.com/jmylchreest/hostbridge/internal/runtime"
)

// Module names.
const (
	ModuleWindow   = "Window"
	ModuleEvent    = "Event"
	ModuleInternal = "Internal"
	ModuleApp      = "App"
)

// PendingFunc builds the pending window for a createWebview call.
type PendingFunc func(wc config.WindowConfig) *runtime.PendingWindow

// Options configures the endpoint table.
type Options struct {
	// Pending builds windows opened from page script. Defaults to a plain
	// pending window without asset protocol or file-drop handling.
	Pending PendingFunc
}

// Register installs every first-party module on m.
func Register(m *app.Manager, opts Options) {
	if opts.Pending == nil {
		opts.Pending = defaultPending
	}
	m.RegisterEndpoint(ModuleWindow, newWindowModule(m, opts.Pending))
	m.RegisterEndpoint(ModuleEvent, newEventModule(m))
	m.RegisterEndpoint(ModuleInternal, newInternalModule(m))
	m.RegisterEndpoint(ModuleApp, newAppModule(m))
}

func defaultPending(wc config.WindowConfig) *runtime.PendingWindow {
	return runtime.NewPendingWindow(wc.Label, runtime.URLFromConfig(wc), runtime.AttributesFromConfig(wc))
}

type command func(ctx context.Context, msg *app.InvokeMessage) (any, error)

// module dispatches on the command name.
type module struct {
	name     string
	commands map[string]command
}

func (mod *module) Invoke(ctx context.Context, msg *app.InvokeMessage) (any, error) {
	c, ok := mod.commands[msg.Command]
	if !ok {
		return nil, ipc.CommandNotFound(mod.name+" command", msg.Command)
	}
	return c(ctx, msg)
}

// Commands returns the module's command names sorted.
func (mod *module) Commands() []string {
	names := make([]string, 0, len(mod.commands))
	for name := range mod.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeArgs decodes optional call arguments.
func decodeArgs(msg *app.InvokeMessage, v any) error {
	if len(msg.Inner) == 0 || string(msg.Inner) == "null" {
		return nil
	}
	return msg.Decode(v)
}

func missingArg(name string) error {
	return ipc.SerializationFailure(fmt.Errorf("missing argument %q", name))
}

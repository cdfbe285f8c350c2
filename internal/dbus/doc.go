// Package dbus exposes a running bridge application on the session bus.
//
// The Server lists windows, emits and triggers events on behalf of
// out-of-process tools, and broadcasts window lifecycle and event signals.
// Client and Monitor are the matching consumer side used by the CLI.
package dbus

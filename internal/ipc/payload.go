// Package ipc defines the invoke protocol spoken between page script and the
// host: the inbound call envelope, the scripts the host evaluates in reply,
// and the bridge installed into every script context.
package ipc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Reserved command names and prefixes.
const (
	// CommandInitialized is posted by the bridge when a script context is ready.
	CommandInitialized = "__initialized"

	// PluginPrefix marks a command addressed to a plugin, as in
	// "plugin:<name>|<command>".
	PluginPrefix = "plugin:"

	// pluginSeparator splits the plugin name from its command.
	pluginSeparator = "|"
)

// CallbackID names a page-side function the host calls with a result.
// Page script may send it as a string or a number.
type CallbackID string

// UnmarshalJSON accepts strings and numbers.
func (c *CallbackID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CallbackID(s)
		return nil
	}
	if string(data) == "null" {
		*c = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("callback id must be a string or number: %w", err)
	}
	*c = CallbackID(n.String())
	return nil
}

// InvokePayload is the inbound call envelope.
type InvokePayload struct {
	Command  string          `json:"command"`
	Module   string          `json:"tauri_module,omitempty"`
	Callback CallbackID      `json:"callback"`
	Error    CallbackID      `json:"error"`
	Inner    json.RawMessage `json:"inner,omitempty"`
	Salt     string          `json:"salt,omitempty"`
}

// PageLoadPayload accompanies CommandInitialized.
type PageLoadPayload struct {
	URL string `json:"url"`
}

// ParsePayload decodes a raw message posted by page script.
func ParsePayload(raw string) (InvokePayload, error) {
	var p InvokePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return InvokePayload{}, SerializationFailure(err)
	}
	if p.Command == "" {
		return InvokePayload{}, SerializationFailure(fmt.Errorf("missing command"))
	}
	return p, nil
}

// PageLoad decodes the inner value of an initialization message.
func (p InvokePayload) PageLoad() (PageLoadPayload, error) {
	var pl PageLoadPayload
	if len(p.Inner) == 0 || string(p.Inner) == "null" {
		return pl, nil
	}
	if err := json.Unmarshal(p.Inner, &pl); err != nil {
		return pl, SerializationFailure(err)
	}
	return pl, nil
}

// Plugin splits a plugin command into plugin name and command. ok is false
// when the command is not plugin-namespaced.
func (p InvokePayload) Plugin() (name, command string, ok bool) {
	return SplitPluginCommand(p.Command)
}

// SplitPluginCommand parses "plugin:<name>|<command>". A namespaced command
// without a separator addresses the plugin with an empty command.
func SplitPluginCommand(cmd string) (name, command string, ok bool) {
	rest, ok := strings.CutPrefix(cmd, PluginPrefix)
	if !ok {
		return "", "", false
	}
	name, command, _ = strings.Cut(rest, pluginSeparator)
	return name, command, true
}

// PluginCommand builds "plugin:<name>|<command>".
func PluginCommand(name, command string) string {
	return PluginPrefix + name + pluginSeparator + command
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

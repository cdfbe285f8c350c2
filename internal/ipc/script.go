package ipc

import (
	"encoding/json"
	"fmt"
)

// CallbackScript calls a page-side callback with value encoded as JSON.
func CallbackScript(id CallbackID, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", SerializationFailure(err)
	}
	return RawCallbackScript(id, data), nil
}

// RawCallbackScript calls a page-side callback with pre-encoded JSON.
func RawCallbackScript(id CallbackID, arg json.RawMessage) string {
	if len(arg) == 0 {
		arg = json.RawMessage("null")
	}
	fn := quote(string(id))
	return fmt.Sprintf(
		`if (typeof window[%[1]s] === "function") { window[%[1]s](%[2]s) } else { console.warn("[hostbridge] callback " + %[1]s + " not found") }`,
		fn, arg,
	)
}

// EmitScript delivers an event to the bridge's emit function. The salt lets
// the bridge confirm the script came from the host.
func EmitScript(emitFn, event string, payload json.RawMessage, salt string) string {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return fmt.Sprintf(`window[%s]({event: %s, payload: %s}, %s)`, quote(emitFn), quote(event), payload, quote(salt))
}

// SetSaltScript hands the next salt to the bridge.
func SetSaltScript(setSaltFn, salt string) string {
	return fmt.Sprintf(`window[%s](%s)`, quote(setSaltFn), quote(salt))
}

// ConsoleErrorScript logs msg to the page console.
func ConsoleErrorScript(msg string) string {
	return fmt.Sprintf(`console.error(%s)`, quote("[hostbridge] "+msg))
}

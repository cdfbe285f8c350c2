package ipc

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

//go:embed assets/bridge.js
var bridgeSource string

var bridgeTemplate = template.Must(template.New("bridge").Parse(bridgeSource))

// FunctionNames are the per-process global names the bridge registers.
// They are randomized so page script cannot rely on them ahead of time.
type FunctionNames struct {
	Emit    string
	SetSalt string
}

// NewFunctionNames returns fresh randomized names.
func NewFunctionNames() FunctionNames {
	return FunctionNames{
		Emit:    "__hb_emit_" + randomSuffix(),
		SetSalt: "__hb_salt_" + randomSuffix(),
	}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// BridgeScript renders the initialization script installed into every
// script context.
func BridgeScript(names FunctionNames) (string, error) {
	var buf bytes.Buffer
	err := bridgeTemplate.Execute(&buf, map[string]string{
		"EmitFn":       quote(names.Emit),
		"SetSaltFn":    quote(names.SetSalt),
		"Initialized":  quote(CommandInitialized),
		"PluginPrefix": quote(PluginPrefix),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render bridge script: %w", err)
	}
	return buf.String(), nil
}

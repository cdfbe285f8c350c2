package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hostbridge/internal/event"
)

var emitOpts struct {
	window string
}

var emitCmd = &cobra.Command{
	Use:   "emit <event> [payload]",
	Short: "Emit an event to the application's windows",
	Long: `Emit an event to every window, or to one window with --window.

The payload is JSON. Text that is not valid JSON is sent as a JSON string.

Examples:
  hostbridge emit app:refresh
  hostbridge emit app:notice '{"level":"info","text":"Saved"}'
  hostbridge emit --window settings app:focus`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEmit,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <window> <event> [payload]",
	Short: "Fire host listeners as if a window raised an event",
	Long: `Fire the application's host-side listeners with an event attributed
to window. No page receives it.

Examples:
  hostbridge trigger main app:save '{"path":"/tmp/notes.md"}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runTrigger,
}

func init() {
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(triggerCmd)

	emitCmd.Flags().StringVarP(&emitOpts.window, "window", "w", "",
		"Deliver only to this window label")
}

func runEmit(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := event.ValidateName(name); err != nil {
		return err
	}
	payload, err := payloadArg(args[1:])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := controlClient()
	if err != nil {
		return err
	}

	logger.Debug("emitting event", "event", name, "window", emitOpts.window)
	return client.Emit(ctx, emitOpts.window, name, payload)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	window, name := args[0], args[1]
	if err := event.ValidateName(name); err != nil {
		return err
	}
	payload, err := payloadArg(args[2:])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := controlClient()
	if err != nil {
		return err
	}

	logger.Debug("triggering event", "event", name, "window", window)
	return client.Trigger(ctx, window, name, payload)
}

// payloadArg returns the optional payload argument as JSON text.
func payloadArg(args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "null", nil
	}
	if json.Valid([]byte(args[0])) {
		return args[0], nil
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(data), nil
}

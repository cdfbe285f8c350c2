package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/hostbridge/internal/tui"
)

var monitorOpts struct {
	history   int
	clipboard string
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch windows and events live",
	Long: `Launch an interactive terminal view of the running application.

The monitor lists recent events, follows new ones as they are emitted and
shows every open window with its page-load count.

Key bindings:
  j/k, ↑/↓    Navigate list
  enter       View event details
  c           Copy payload to clipboard
  i           Copy event ID
  C / alt+c   Copy visible events as JSON / YAML
  /           Search, or filter with field expressions
  p           Pause live updates
  r           Reload from hostbridged
  ?           Show help
  q           Quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntVar(&monitorOpts.history, "history", tui.DefaultHistory,
		"Number of events to keep")
	monitorCmd.Flags().StringVar(&monitorOpts.clipboard, "clipboard", "",
		"Clipboard command (default: wl-copy, xclip, xsel or pbcopy)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	client, err := controlClient()
	if err != nil {
		return err
	}

	return tui.Run(tui.RunOptions{
		Client:           client,
		ClipboardCommand: monitorOpts.clipboard,
		History:          monitorOpts.history,
		Logger:           logger,
	})
}

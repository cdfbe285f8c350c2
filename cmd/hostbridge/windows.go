package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hostbridge/internal/adapter/output"
)

var windowsOpts struct {
	format string
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List the running application's windows",
	Long: `List every window registered with the running application.

Examples:
  hostbridge windows
  hostbridge windows --format json
  hostbridge windows --format ids`,
	Args: cobra.NoArgs,
	RunE: runWindows,
}

func init() {
	rootCmd.AddCommand(windowsCmd)

	windowsCmd.Flags().StringVarP(&windowsOpts.format, "format", "f", "table",
		"Output format (table, json, ids)")
}

func runWindows(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := controlClient()
	if err != nil {
		return err
	}
	windows, err := client.ListWindows(ctx)
	if err != nil {
		return err
	}

	logger.Debug("listed windows", "count", len(windows))
	return output.FormatWindows(cmd.OutOrStdout(), windows, output.ParseFormat(windowsOpts.format))
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hostbridge/internal/scaffold"
)

var initOpts struct {
	directory   string
	appName     string
	windowTitle string
	distDir     string
	devPath     string
	force       bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a hostbridge project",
	Long: `Create the ` + scaffold.TargetDir + ` directory with a starter
hostbridge.toml and README.

Examples:
  # Scaffold in the current directory
  hostbridge init

  # Name the app and point at a Vite dev server
  hostbridge init --app-name "Notes" --dev-path http://localhost:5173`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initOpts.directory, "directory", "d", "",
		"Project directory (default: working directory)")
	initCmd.Flags().StringVar(&initOpts.appName, "app-name", "",
		"Application name")
	initCmd.Flags().StringVar(&initOpts.windowTitle, "window-title", "",
		"Title of the main window")
	initCmd.Flags().StringVar(&initOpts.distDir, "dist-dir", "",
		"Frontend build output, relative to "+scaffold.TargetDir)
	initCmd.Flags().StringVar(&initOpts.devPath, "dev-path", "",
		"Dev server URL used with hostbridged --dev")
	initCmd.Flags().BoolVarP(&initOpts.force, "force", "f", false,
		"Replace an existing "+scaffold.TargetDir+" directory")
}

func runInit(cmd *cobra.Command, args []string) error {
	target, err := scaffold.Init(scaffold.Options{
		Directory:   initOpts.directory,
		AppName:     initOpts.appName,
		WindowTitle: initOpts.windowTitle,
		DistDir:     initOpts.distDir,
		DevPath:     initOpts.devPath,
		Force:       initOpts.force,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", target)
	return nil
}

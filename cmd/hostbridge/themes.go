package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hostbridge/internal/theme"
)

var themesOpts struct {
	format string
	show   string
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List page themes",
	Long: `List the bundled page themes and the user themes in
~/.config/hostbridge/themes/. A user file shadows the bundled theme of the
same name.

Enable a theme in hostbridge.toml:

  [plugins.theme]
  name = "dark"
  watch = true

Examples:
  hostbridge themes
  hostbridge themes --show dark > dark.css`,
	Args: cobra.NoArgs,
	RunE: runThemes,
}

func init() {
	rootCmd.AddCommand(themesCmd)

	themesCmd.Flags().StringVarP(&themesOpts.format, "format", "f", "table",
		"Output format (table, json)")
	themesCmd.Flags().StringVar(&themesOpts.show, "show", "",
		"Print the resolved stylesheet of a theme")
}

func runThemes(cmd *cobra.Command, args []string) error {
	dir, _ := cfg.Plugins[theme.PluginName]["dir"].(string)
	if dir == "" {
		var err error
		if dir, err = theme.ThemesDir(); err != nil {
			logger.Warn("failed to get themes directory", "error", err)
		}
	}

	if themesOpts.show != "" {
		t, err := theme.Resolve(themesOpts.show, dir)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), t.CSS)
		return nil
	}

	themes, err := theme.ListAvailableThemes(dir)
	if err != nil {
		return fmt.Errorf("failed to list themes: %w", err)
	}

	w := cmd.OutOrStdout()
	if themesOpts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(themes)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSOURCE\tPATH")
	for _, info := range themes {
		source := "user"
		if info.IsBundled {
			source = "bundled"
		}
		if info.IsDefault {
			source += " (default)"
		}
		path := info.Path
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, source, path)
	}
	return tw.Flush()
}

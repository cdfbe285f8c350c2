package tui

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

var errNoClipboard = errors.New("no clipboard command available")

// clipboardCommands are tried in order. A command is only picked when its
// display server is present, so an X11 tool is not chosen under Wayland.
var clipboardCommands = []struct {
	env  string // Required environment variable, empty for any
	args []string
}{
	{"WAYLAND_DISPLAY", []string{"wl-copy"}},
	{"DISPLAY", []string{"xclip", "-selection", "clipboard"}},
	{"DISPLAY", []string{"xsel", "--clipboard", "--input"}},
	{"", []string{"pbcopy"}},
}

// copyText pipes text into the clipboard command. configured overrides
// detection and is split on whitespace.
func copyText(text, configured string) error {
	args := strings.Fields(detectClipboardCommand(configured))
	if len(args) == 0 {
		return errNoClipboard
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// detectClipboardCommand returns the command line to copy with, or "".
func detectClipboardCommand(configured string) string {
	if configured != "" {
		return configured
	}
	for _, c := range clipboardCommands {
		if c.env != "" && os.Getenv(c.env) == "" {
			continue
		}
		if _, err := exec.LookPath(c.args[0]); err == nil {
			return strings.Join(c.args, " ")
		}
	}
	return ""
}

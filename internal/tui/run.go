package tui

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/hostbridge/internal/dbus"
	"github.com/jmylchreest/hostbridge/internal/model"
)

// RunOptions configures the monitor.
type RunOptions struct {
	Client           *dbus.Client
	ClipboardCommand string
	History          int
	Logger           *slog.Logger
}

// Run starts the monitor against a running control service and blocks until
// the user quits.
func Run(opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	updates := make(chan tea.Msg, 256)
	send := func(msg tea.Msg) {
		select {
		case updates <- msg:
		default:
			logger.Debug("monitor update dropped", "type", fmt.Sprintf("%T", msg))
		}
	}

	monitor := dbus.NewMonitor(dbus.Handlers{
		WindowCreated: func(info model.WindowInfo) { send(WindowCreatedMsg{Info: info}) },
		WindowClosed:  func(label string) { send(WindowClosedMsg{Label: label}) },
		EventEmitted:  func(record model.EventRecord) { send(EventMsg{Record: record}) },
	}, logger)

	live := true
	if err := monitor.Start(); err != nil {
		// The recorded history is still useful without live signals.
		fmt.Fprintf(os.Stderr, "Warning: live updates unavailable: %v\n", err)
		live = false
	}

	var source Source
	if opts.Client != nil {
		source = opts.Client
	}

	m := New(Options{
		Source:           source,
		Updates:          updates,
		ClipboardCommand: opts.ClipboardCommand,
		History:          opts.History,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, err := p.Run()

	if live {
		if stopErr := monitor.Stop(); stopErr != nil {
			logger.Debug("failed to stop monitor", "error", stopErr)
		}
	}

	return err
}

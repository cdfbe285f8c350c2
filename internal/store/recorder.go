package store

import (
	"log/slog"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// Recorder adds every emitted event to a Store. It satisfies app.Observer.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder creates a recorder for s.
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger}
}

func (r *Recorder) WindowCreated(model.WindowInfo) {}
func (r *Recorder) WindowClosed(string)            {}

// EventEmitted stores record.
func (r *Recorder) EventEmitted(record model.EventRecord) {
	if err := r.store.Add(record); err != nil {
		r.logger.Warn("failed to record event", "event", record.Event, "error", err)
	}
}

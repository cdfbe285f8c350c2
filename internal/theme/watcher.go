package theme

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is how often a watched theme file is checked.
const DefaultPollInterval = time.Second

// Watcher polls a user theme file and reports content changes.
// Bundled themes have no file and are never polled.
type Watcher struct {
	mu     sync.Mutex
	logger *slog.Logger

	// theme is the watcher's own copy; callers only see snapshots.
	theme        Theme
	pollInterval time.Duration
	onChange     func(Theme)

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for a copy of theme.
func NewWatcher(theme *Theme, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger:       logger,
		theme:        *theme,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval sets the polling interval. Takes effect on the next Start.
func (w *Watcher) SetPollInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// SetChangeCallback sets the function called with the reloaded theme.
// It runs on the watcher goroutine.
func (w *Watcher) SetChangeCallback(callback func(Theme)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// UpdateTheme switches to watching a different theme.
func (w *Watcher) UpdateTheme(theme *Theme) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.theme = *theme
}

// Start begins polling until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if w.theme.IsBundled {
		w.mu.Unlock()
		w.logger.Debug("not watching bundled theme", "theme", w.theme.Name)
		return nil
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := w.pollInterval
	path := w.theme.Path
	w.mu.Unlock()

	go w.watchLoop(ctx, interval, w.stopCh, w.doneCh)

	w.logger.Debug("theme watcher started", "path", path, "interval", interval)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Debug("theme watcher stopped")
}

// IsRunning returns whether the watcher is currently polling.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) watchLoop(ctx context.Context, interval time.Duration, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// checkForChanges reloads the theme and reports it when its content changed.
func (w *Watcher) checkForChanges() {
	w.mu.Lock()
	if w.theme.IsBundled {
		w.mu.Unlock()
		return
	}
	if _, err := os.Stat(w.theme.Path); err != nil {
		path := w.theme.Path
		w.mu.Unlock()
		if os.IsNotExist(err) {
			w.logger.Debug("theme file no longer exists", "path", path)
		}
		return
	}

	changed, err := w.theme.Reload()
	snapshot := w.theme
	callback := w.onChange
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("failed to reload theme", "path", snapshot.Path, "error", err)
		return
	}
	if changed {
		w.logger.Info("theme file changed, reloading", "theme", snapshot.Name, "path", snapshot.Path)
		if callback != nil {
			callback(snapshot)
		}
	}
}

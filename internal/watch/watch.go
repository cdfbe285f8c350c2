// Package watch reloads windows when the frontend build output changes.
package watch

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of writes a frontend build produces.
const DefaultDebounce = 250 * time.Millisecond

// DistWatcher watches a directory tree and calls back once per burst of
// changes.
type DistWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// NewDistWatcher creates a watcher for root. onChange runs on the watcher
// goroutine.
func NewDistWatcher(root string, onChange func(), logger *slog.Logger) (*DistWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DistWatcher{
		watcher:  watcher,
		root:     filepath.Clean(root),
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period. Call before Start.
func (w *DistWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start adds every directory under root and begins watching.
func (w *DistWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.running = true

	go w.watch()
	w.logger.Debug("dist watcher started", "path", w.root, "debounce", w.debounce)
	return nil
}

// addTree watches dir and all of its subdirectories.
func (w *DistWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

func (w *DistWatcher) watch() {
	defer close(w.stopped)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.logger.Info("dist directory changed, reloading", "path", w.root)
			if w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dist watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Stop stops watching and waits for a callback in progress.
func (w *DistWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	<-w.stopped
	return w.watcher.Close()
}

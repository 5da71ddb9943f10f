package projects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a Registry when its file is edited outside the process.
type Watcher struct {
	reg      *Registry
	debounce time.Duration
	log      *logging.Logger

	// onReload is called after every reload attempt; tests hook it.
	onReload func(error)
}

// NewWatcher creates a watcher for reg. A zero debounce uses 500ms.
func NewWatcher(reg *Registry, debounce time.Duration, log *logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{reg: reg, debounce: debounce, log: log.WithPrefix("registry-watch")}
}

// Run watches until ctx is cancelled. The registry directory is watched
// rather than the file because saves replace the file by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	file := filepath.Clean(w.reg.File())
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Debug("watching registry", logging.F("file", file))

	ticker := time.NewTicker(w.debounce / 5)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("registry watcher error", logging.Err(err))

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < w.debounce {
				continue
			}
			pending = time.Time{}
			err := w.reg.Reload()
			if err != nil {
				w.log.Warn("registry reload failed", logging.Err(err))
			} else {
				w.log.Event(logging.EventRegistryReload, logging.F("projects", len(w.reg.List())))
			}
			if w.onReload != nil {
				w.onReload(err)
			}
		}
	}
}

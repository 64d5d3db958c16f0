package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watcher re-reads a deb822 rules file whenever it changes and hands the
// decoded rules to OnChange. The containing directory is watched so that
// files replaced by rename are picked up.
type Watcher struct {
	Path     string
	Debounce time.Duration
	OnChange func(ctx context.Context, rules []Rule) error
	Logger   *slog.Logger
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watching rules file", "path", target)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !Relevant(ev.Op) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("rules watcher error", "error", err)
		case <-timer.C:
			w.reload(ctx, target, logger)
		}
	}
}

func (w *Watcher) reload(ctx context.Context, path string, logger *slog.Logger) {
	loaded, err := ReadFile(path)
	if err != nil && len(loaded) == 0 {
		logger.Error("rules file reload failed", "path", path, "error", err)
		return
	}
	if err != nil {
		logger.Warn("rules file has invalid stanzas", "path", path, "error", err)
	}
	if w.OnChange == nil {
		return
	}
	if err := w.OnChange(ctx, loaded); err != nil {
		logger.Error("applying reloaded rules failed", "path", path, "error", err)
		return
	}
	logger.Info("rules reloaded", "path", path, "count", len(loaded))
}

// Relevant reports whether an event can change the file's contents.
func Relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}

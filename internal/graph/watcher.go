package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
)

// TriggerFunc is called once the graph has been quiet for the debounce interval.
type TriggerFunc func(ctx context.Context) error

// Watcher watches a graph directory and calls a trigger after page files change.
// Bursts of events are collapsed into a single call. If the trigger reports
// that a build is already running, the call is retried after another interval.
type Watcher struct {
	root     string
	debounce time.Duration
	trigger  TriggerFunc
}

// NewWatcher creates a watcher for root.
func NewWatcher(root string, debounce time.Duration, trigger TriggerFunc) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	logger.InfoContext(ctx, "watching graph directory", "root", w.root, "debounce", w.debounce)

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		}
		fire = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(info.Name()) {
					if err := w.addTree(fw, event.Name); err != nil {
						logger.WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !IsPageFile(event.Name) {
				continue
			}
			logger.DebugContext(ctx, "graph file changed", "path", event.Name, "op", event.Op.String())
			schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "file watcher error", "error", err)

		case <-fire:
			fire = nil
			err := w.trigger(ctx)
			switch {
			case err == nil:
			case errors.Is(err, apperrors.ErrBuildInProgress):
				logger.InfoContext(ctx, "index build in progress, retrying later")
				schedule()
			default:
				logger.ErrorContext(ctx, "re-indexing after graph change failed", "error", err)
			}
		}
	}
}

// addTree adds dir and all of its subdirectories (fsnotify is not recursive).
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

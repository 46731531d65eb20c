package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the registry whenever its file changes on disk, until ctx is
// done. The parent directory is watched so atomic renames are seen.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(r.path)
	if addErr := watcher.Add(dir); addErr != nil {
		return fmt.Errorf("watch %s: %w", dir, addErr)
	}

	target := filepath.Clean(r.path)
	r.logger.Info("Watching custom endpoints file", logger.String("path", target))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				debounce = time.After(reloadDebounce)
			}

		case <-debounce:
			debounce = nil
			if reloadErr := r.Reload(); reloadErr != nil {
				r.logger.Warn("Failed to reload custom endpoints", logger.Error(reloadErr))
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("Custom endpoints watcher error", logger.Error(watchErr))
		}
	}
}

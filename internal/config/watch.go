package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor produces for one
// save into a single reload.
const reloadDebounce = 250 * time.Millisecond

// Watch calls onChange after the config file at path is written, created,
// renamed, or removed. It watches the parent directory so that editors which
// replace the file by rename are seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	if path == "" {
		return errors.New("config: watch: no config file path")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}

	target := filepath.Clean(path)

	logger.Debug("watching config file", slog.String("path", target))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != target || ev.Op == fsnotify.Chmod {
				continue
			}

			logger.Debug("config file event", slog.String("op", ev.Op.String()))

			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}

			fire = timer.C

		case <-fire:
			fire = nil

			logger.Info("config file changed", slog.String("path", target))
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/codefionn/sqmean/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// settle is how long Watch waits after the last event before reloading,
// so editors that write in several steps trigger one reload.
const settle = 50 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes the new
// configuration to onChange, until ctx is cancelled. The parent directory is
// watched so that atomic replace-by-rename is seen as well. Files that fail
// to load are logged and skipped.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer watcher.Close()

		var reload <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					reload = time.After(settle)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error: %v", err)

			case <-reload:
				reload = nil
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("ignoring config change: %v", err)
					continue
				}
				onChange(cfg)
			}
		}
	}()
	return nil
}

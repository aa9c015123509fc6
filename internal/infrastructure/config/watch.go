package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchProfile reloads the profile file whenever it changes and hands the
// result to onChange. The parent directory is watched because editors
// usually replace files instead of writing them in place. Parse failures
// are logged and the previous profile stays in effect.
func WatchProfile(ctx context.Context, path string, logger *zap.Logger, onChange func(*Profile)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create profile watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to resolve profile path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch profile directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				profile, err := LoadProfile(abs)
				if err != nil {
					logger.Warn("Ignoring invalid profile update", zap.String("path", abs), zap.Error(err))
					continue
				}
				logger.Info("Shell profile reloaded", zap.String("path", abs), zap.String("shell", profile.Shell))
				onChange(profile)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Profile watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

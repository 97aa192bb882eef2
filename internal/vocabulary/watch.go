package vocabulary

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the base layer from path whenever the file is written or
// replaced, until ctx is cancelled. The parent directory is watched so that
// editors which save by rename are picked up. Reload failures are logged
// and the previous base layer is kept.
func (v *Vocabulary) Watch(ctx context.Context, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("vocabulary: creating watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("vocabulary: resolving %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("vocabulary: watching %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				n, err := v.LoadFile(abs)
				if err != nil {
					logger.Warn("dictionary reload failed", zap.String("path", abs), zap.Error(err))
					continue
				}
				logger.Info("dictionary reloaded", zap.String("path", abs), zap.Int("terms", n))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("dictionary watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

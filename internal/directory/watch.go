package directory

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// LoadFunc reads the directory entries from path.
type LoadFunc func(path string) (map[string]Entry, error)

// debounce coalesces the burst of events editors produce on save.
const debounce = 150 * time.Millisecond

// Watch reloads s from path whenever the file changes, until ctx is done.
// The parent directory is watched so that atomic renames are seen. A load
// error keeps the previous entries.
func Watch(ctx context.Context, path string, load LoadFunc, s *Static, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	clean := filepath.Clean(path)
	if err := w.Add(filepath.Dir(clean)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(clean), err)
	}

	go func() {
		defer func() { _ = w.Close() }()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != clean {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				entries, err := load(clean)
				if err != nil {
					logger.Warn("contacts reload failed", zap.String("path", clean), zap.Error(err))
					continue
				}
				s.Replace(entries)
				logger.Info("contacts reloaded", zap.String("path", clean), zap.Int("entries", len(entries)))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("contacts watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

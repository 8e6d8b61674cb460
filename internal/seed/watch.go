package seed

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// Watch re-imports the seed file at path whenever it changes, until ctx is
// cancelled. It watches the parent directory so editors that replace the
// file by rename are still noticed. Bursts of events are debounced and an
// unchanged checksum skips the import.
func Watch(ctx context.Context, path string, im *Importer, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("seed watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("seed watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			res, err := im.ImportIfChanged(ctx, abs)
			if err != nil {
				logger.Warn("seed watcher: import failed", slog.String("error", err.Error()))
				continue
			}
			if res.Skipped {
				logger.Debug("seed watcher: unchanged", slog.String("checksum", res.Checksum))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("seed watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

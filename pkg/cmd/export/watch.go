package export

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/racereplay/log"
)

// watchFile calls onChange after file was written, created or renamed into
// place. Bursts of events within debounce trigger a single call.
// It returns when ctx is done.
//
//nolint:whitespace,cyclop // can't make both editor and linter happy
func watchFile(
	ctx context.Context,
	l *log.Logger,
	file string,
	debounce time.Duration,
	onChange func() error,
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	// editors often replace the file, so the directory is watched
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	l.Info("watching for changes", log.String("file", target))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Info("context done, stopping watch")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if name != target {
				continue
			}
			l.Debug("change detected",
				log.String("file", event.Name), log.String("op", event.Op.String()))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Error("watcher error", log.ErrorField(err))
		case <-timer.C:
			if err := onChange(); err != nil {
				l.Error("re-export failed", log.ErrorField(err))
			}
		}
	}
}

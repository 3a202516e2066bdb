package session

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchKeyFile watches an API key file and hands the trimmed contents
// to apply whenever it changes. Editors replace files on save, so a
// removed or renamed path is re-added and changes are debounced before
// the reload fires. Returns without starting a watcher when path is
// empty.
func WatchKeyFile(path string, log *slog.Logger, apply func(key string)) error {
	if path == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.Add(ev.Name); err != nil {
						log.Error("watch re-add", "path", ev.Name, "err", err)
					}
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounce.C:
				data, err := os.ReadFile(path)
				if err != nil {
					log.Error("api key reload failed", "path", path, "err", err)
					continue
				}
				key := strings.TrimSpace(string(data))
				if key == "" {
					log.Warn("api key file is empty", "path", path)
					continue
				}
				apply(key)
				log.Info("api key reloaded", "path", path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watch error", "err", err)
			}
		}
	}()
	return nil
}

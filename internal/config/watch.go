package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it changes on disk and calls fn with
// the new value. Invalid intermediate states (partial editor writes) are
// logged and skipped. The returned stop func closes the watcher.
func Watch(path string, fn func(Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	// Watch the parent directory — editors replace files via rename, which
	// drops a watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Printf("CONFIG: reload skipped: %v", err)
					continue
				}
				fn(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("CONFIG: watcher error: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

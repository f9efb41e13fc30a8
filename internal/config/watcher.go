package config

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Watcher hot-reloads ReloadableSettings from a YAML file whenever it
// changes on disk, without ever touching the secret-bearing Config.
type Watcher struct {
	mu       sync.RWMutex
	current  ReloadableSettings
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{current: DefaultReloadableSettings(), path: path, logger: logger}
	if path == "" {
		return w, nil
	}
	if err := w.reload(); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w.watcher = fw
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := w.reload(); err != nil && w.logger != nil {
					w.logger.Warn("config reload failed", zap.Error(err))
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	settings := DefaultReloadableSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return err
	}
	w.mu.Lock()
	w.current = settings
	w.mu.Unlock()
	return nil
}

func (w *Watcher) Current() ReloadableSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Close() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the configuration when its file changes on disk.
// Reloads that fail validation are dropped; the previous configuration
// stays in effect.
type Watcher struct {
	loader   *Loader
	onChange func(*Config)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

// NewWatcher starts watching the loader's config file. onChange is
// called with each successfully loaded and validated configuration.
func NewWatcher(loader *Loader, onChange func(*Config)) (*Watcher, error) {
	configPath := loader.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to determine config path")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory; editors often replace the file on save
	if err := fsw.Add(filepath.Dir(configPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		loader:   loader,
		onChange: onChange,
		watcher:  fsw,
		done:     make(chan struct{}),
	}

	go w.run(configPath)

	log.Info().Str("path", configPath).Msg("Config watcher started")

	return w, nil
}

func (w *Watcher) run(configPath string) {
	var debounce *time.Timer

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			// Editors fire bursts of events per save
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				w.reload()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		log.Error().Err(err).Msg("Config reload failed, keeping previous config")
		return
	}
	if err := Validate(cfg); err != nil {
		log.Error().Err(err).Msg("Reloaded config is invalid, keeping previous config")
		return
	}

	log.Info().Msg("Config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.done)
	})
	return w.watcher.Close()
}

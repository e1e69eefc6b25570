package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a settings file whenever it changes and delivers each valid result on a
// channel, so the render thread can apply it between frames.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan Config
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Watch starts watching a settings file. The containing directory is watched so editors that
// replace the file on save are followed.
//
// Parameters:
//   - path: the settings file
//
// Returns:
//   - *Watcher: the running watcher
//   - error: an error if the watch could not be established
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    abs,
		watcher: fw,
		updates: make(chan Config, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Updates delivers the configuration after every successful reload. Only the newest pending
// configuration is kept.
func (w *Watcher) Updates() <-chan Config {
	return w.updates
}

// Errors delivers reload failures. Only the newest pending error is kept.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher and waits for its goroutine to exit.
//
// Returns:
//   - error: an error from closing the underlying watch
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				common.Logger().Warn("config reload failed", "path", w.path, "error", err)
				replace(w.errs, err)
				continue
			}
			common.Logger().Info("config reloaded", "path", w.path)
			replace(w.updates, cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			replace(w.errs, fmt.Errorf("config: watch %s: %w", w.path, err))
		}
	}
}

// replace sends v on a 1-buffered channel, dropping any value the receiver has not taken yet.
func replace[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

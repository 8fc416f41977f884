package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadLogger receives the outcome of each reload attempt. Implementations
// must not block; config has no logging dependency of its own so the
// caller supplies observe.Logger (or any adapter) through this interface.
type ReloadLogger interface {
	ReloadSucceeded(warn Warnings)
	ReloadFailed(err error)
}

// Watcher watches a config file for changes and republishes the Store on
// every successful reload. Grounded on the debounced fsnotify watch loop
// used for live reload elsewhere in this codebase: coalesce bursts of
// writes (editors often truncate-then-write) behind a short timer before
// re-reading the file.
type Watcher struct {
	path     string
	store    *Store
	logger   ReloadLogger
	debounce time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a Watcher for path, publishing reloads into store.
func NewWatcher(path string, store *Store, logger ReloadLogger) *Watcher {
	return &Watcher{
		path:     path,
		store:    store,
		logger:   logger,
		debounce: 250 * time.Millisecond,
	}
}

// Start begins watching the config file's directory (not the file itself:
// editors commonly replace a file by rename, which drops a direct watch).
// It returns once the watcher is installed; reload happens asynchronously.
func (w *Watcher) Start(ctx context.Context) error {
	if w.path == "" {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, fsw)
	return nil
}

// Stop halts the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.reload)
	}

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.ReloadFailed(err)
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, warn, err := Load(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.ReloadFailed(err)
		}
		return
	}
	w.store.Publish(cfg)
	if w.logger != nil {
		w.logger.ReloadSucceeded(warn)
	}
}

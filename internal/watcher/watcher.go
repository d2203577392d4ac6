// Package watcher watches the worker's on-disk state for outside
// interference: a deleted database or data directory, or an edited
// settings file. fsnotify cannot watch paths that do not exist yet,
// so the parent directory is watched instead.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const debounce = 100 * time.Millisecond

// Watcher fires a callback when its target path sees the watched
// operations.
type Watcher struct {
	target   string
	parent   string
	ops      fsnotify.Op
	callback func()
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
}

// OnDelete creates a watcher that fires when the target is removed.
// Removal of the parent directory counts as removal of the target.
func OnDelete(target string, callback func()) (*Watcher, error) {
	return newWatcher(target, fsnotify.Remove|fsnotify.Rename, callback)
}

// OnChange creates a watcher that fires when the target is written or
// replaced.
func OnChange(target string, callback func()) (*Watcher, error) {
	return newWatcher(target, fsnotify.Write|fsnotify.Create, callback)
}

func newWatcher(target string, ops fsnotify.Op, callback func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		target:   filepath.Clean(target),
		parent:   filepath.Dir(target),
		ops:      ops,
		callback: callback,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching. A missing parent directory is tolerated; the
// watch is re-established once it appears.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parent).Msg("Failed to add initial watch")
	}

	go w.loop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parent); err != nil {
		return err
	}
	return w.watcher.Add(w.parent)
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)
	watchesDeletion := w.ops&fsnotify.Remove != 0

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)

			hit := path == w.target && event.Op&w.ops != 0
			// Losing the parent implies losing the target.
			if watchesDeletion && path == w.parent && event.Op&fsnotify.Remove != 0 {
				hit = true
			}
			if hit {
				pending = true
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, w.fire)
				continue
			}

			// A recreated target within the debounce window cancels a
			// pending deletion callback.
			if watchesDeletion && pending && path == w.target && event.Op&fsnotify.Create != 0 {
				log.Info().Str("path", w.target).Msg("Target recreated, cancelling callback")
				pending = false
				if timer != nil {
					timer.Stop()
				}
				continue
			}

			if path == w.parent && event.Op&fsnotify.Create != 0 {
				_ = w.addWatch()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire() {
	log.Info().Str("path", w.target).Msg("Watched path changed, triggering callback")

	if w.callback != nil {
		w.callback()
	}

	// The parent may have been recreated; re-establish after a grace
	// period.
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := w.addWatch(); err != nil {
			log.Warn().Err(err).Str("path", w.parent).Msg("Failed to re-establish watch")
		}
	}()
}

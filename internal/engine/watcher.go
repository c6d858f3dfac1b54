package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits after the last observed
// filesystem event under root before attempting a reload. A bulk Save
// writes many small files in quick succession; debouncing collapses
// that burst into a single reload once the directory settles.
const defaultDebounce = 500 * time.Millisecond

// Watcher drives Engine.Reload whenever a new data-version directory
// appears under the engine's root. It wraps an fsnotify watcher the
// same way a directory-tree watcher would, but only needs to watch
// root itself: a new data version always arrives as a freshly created
// subdirectory there, never as a deep nested change.
type Watcher struct {
	engine *Engine
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	onSwap  func(*Database)
	closing chan struct{}
	done    chan struct{}
}

// WatchOption configures optional Watcher behavior.
type WatchOption func(*Watcher)

// WithDebounce overrides the default settle time before a reload fires.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger attaches a structured logger; nil disables logging.
func WithLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) { w.logger = l }
}

// OnSwap registers a callback invoked after every successful reload,
// with the newly active Database. Primarily useful for tests that need
// to observe a swap without polling.
func OnSwap(fn func(*Database)) WatchOption {
	return func(w *Watcher) { w.onSwap = fn }
}

// Watch starts watching e's root directory for new data versions and
// returns a Watcher that keeps e's snapshot current until Close is
// called. The caller owns the returned Watcher's lifetime.
func Watch(e *Engine, opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(e.root); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		engine:   e,
		fsw:      fsw,
		logger:   slog.Default(),
		debounce: defaultDebounce,
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.closing:
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("engine watcher error", "error", err)
			}
		}
	}
}

// scheduleReload resets the debounce timer so a burst of events fires
// only one reload once the directory is quiet for w.debounce.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.performReload)
}

func (w *Watcher) performReload() {
	if !w.engine.stale() {
		return
	}
	if err := w.engine.Reload(); err != nil {
		if w.logger != nil {
			w.logger.Warn("engine reload failed", "root", w.engine.root, "error", err)
		}
		return
	}
	if w.logger != nil {
		w.logger.Info("engine reloaded", "root", w.engine.root, "version", w.engine.Snapshot().Version.Timestamp)
	}
	if w.onSwap != nil {
		w.onSwap(w.engine.Snapshot())
	}
}

// Close stops the watcher and waits for its goroutine to exit. It does
// not touch the engine's currently active snapshot.
func (w *Watcher) Close() error {
	close(w.closing)
	<-w.done
	return w.fsw.Close()
}

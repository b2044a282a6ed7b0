package flow

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the library when flow files change on disk. This is
// primarily used in development environments for faster iteration.
type Watcher struct {
	library   *Library
	callbacks []func(*Library)
	mu        sync.Mutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher starts watching the library's directory. The caller owns the
// returned watcher and must Stop it on shutdown.
func NewWatcher(library *Library, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		library: library,
		logger:  logger,
		watcher: fsWatcher,
		stopCh:  make(chan struct{}),
	}

	if err := fsWatcher.Add(library.dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch flows directory: %w", err)
	}

	go w.watchLoop()

	logger.Info("flow hot reloading enabled", zap.String("dir", library.dir))
	return w, nil
}

// OnReload registers a callback invoked after each successful reload.
func (w *Watcher) OnReload(callback func(*Library)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Stop stops the watcher goroutine and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

func (w *Watcher) watchLoop() {
	defer w.watcher.Close()

	// Editors fire bursts of events per save; reload once they settle.
	var debounceTimer *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}

			w.logger.Info("flow file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()))

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("flow watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("stopping flow watcher")
			return
		}
	}
}

func (w *Watcher) reload() {
	if err := w.library.Reload(); err != nil {
		w.logger.Error("flow reload failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	callbacks := make([]func(*Library), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(w.library)
	}
}

package profiles

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/logger"
)

// DefaultDebounce coalesces editor save bursts into one reload
const DefaultDebounce = 500 * time.Millisecond

// Watcher invalidates a FileResolver when its profiles file changes.
// The directory is watched so atomic rename-on-save is seen.
type Watcher struct {
	resolver *FileResolver
	watcher  *fsnotify.Watcher
	logger   *zap.SugaredLogger
	debounce time.Duration
	onReload func()

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

// NewWatcher starts watching the resolver's file. onReload may be nil.
func NewWatcher(resolver *FileResolver, debounce time.Duration, onReload func(), log *zap.SugaredLogger) (*Watcher, error) {
	if log == nil {
		log = logger.Logger
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	dir := filepath.Dir(resolver.Path())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", dir)
	}

	w := &Watcher{
		resolver: resolver,
		watcher:  fw,
		logger:   log.Named("profiles"),
		debounce: debounce,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	target := filepath.Clean(w.resolver.Path())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debugw("Profiles file changed", logger.FieldFile, event.Name, "op", event.Op.String())
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Profiles watcher error", logger.FieldError, err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.resolver.Invalidate()
		w.logger.Infow("Profiles reloaded", logger.FieldFile, w.resolver.Path())
		if w.onReload != nil {
			w.onReload()
		}
	})
}

package input

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const DefaultDebounce = 200 * time.Millisecond

// ReloadWatcher calls a per-file callback when that file is written or
// recreated. Editors often save in several steps, so events for a file
// are coalesced until it has been quiet for the debounce interval.
type ReloadWatcher struct {
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	files   map[string]func(path string)
	pending map[string]*time.Timer
}

func NewReloadWatcher(debounce time.Duration, log zerolog.Logger) *ReloadWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &ReloadWatcher{
		debounce: debounce,
		log:      log,
		files:    make(map[string]func(string)),
		pending:  make(map[string]*time.Timer),
	}
}

// Watch registers fn for path. Empty paths are ignored so optional
// documents can be passed straight from config.
func (rw *ReloadWatcher) Watch(path string, fn func(path string)) {
	if path == "" || fn == nil {
		return
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.files[filepath.Clean(path)] = fn
}

func (rw *ReloadWatcher) Len() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.files)
}

// Run watches the registered files' directories until ctx is done.
func (rw *ReloadWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload watcher: %w", err)
	}
	defer watcher.Close()

	rw.mu.Lock()
	dirs := make(map[string]bool)
	for path := range rw.files {
		dirs[filepath.Dir(path)] = true
	}
	rw.mu.Unlock()
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("reload watcher: watch %s: %w", dir, err)
		}
	}

	defer rw.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				rw.schedule(filepath.Clean(event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			rw.log.Warn().Err(err).Msg("reload watcher error")
		}
	}
}

func (rw *ReloadWatcher) schedule(path string) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	fn, ok := rw.files[path]
	if !ok {
		return
	}
	if t, ok := rw.pending[path]; ok {
		t.Reset(rw.debounce)
		return
	}
	rw.pending[path] = time.AfterFunc(rw.debounce, func() {
		rw.mu.Lock()
		delete(rw.pending, path)
		rw.mu.Unlock()

		rw.log.Debug().Str("path", path).Msg("reloading")
		fn(path)
	})
}

func (rw *ReloadWatcher) stopPending() {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	for path, t := range rw.pending {
		t.Stop()
		delete(rw.pending, path)
	}
}

package definition

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/flowstate/internal/log"
	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// Watcher watches a definitions directory and re-registers definition
// files as they are created or edited. Events for the same path are
// debounced so editors that write in several bursts trigger one reload.
//
// Reload failures never stop the watcher: an invalid graph or a frozen
// definition is logged and the file is skipped until its next change.
type Watcher struct {
	store    *Store
	dir      string
	debounce time.Duration

	fsw  *fsnotify.Watcher
	done chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(store *Store, dir string, debounce time.Duration) *Watcher {
	return &Watcher{
		store:    store,
		dir:      dir,
		debounce: debounce,
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching the definitions directory.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()

	log.Info(log.CatWatcher, "Watching definitions directory", "dir", w.dir)
	return nil
}

// Stop stops the watcher and waits for in-flight reloads to settle.
func (w *Watcher) Stop() {
	close(w.done)
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isDefinitionFile(event.Name) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Filesystem watcher error", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for a changed file.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		// The done check and the WaitGroup registration share the mutex
		// with Stop, so Stop either sees this reload in the group or the
		// reload sees done closed and bails.
		w.mu.Lock()
		delete(w.pending, path)
		select {
		case <-w.done:
			w.mu.Unlock()
			return
		default:
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		w.reload(path)
	})
}

func (w *Watcher) reload(path string) {
	def, err := LoadFile(path)
	if err != nil {
		log.ErrorErr(log.CatWatcher, "Failed to load definition file", err, "path", path)
		return
	}

	if err := RegisterOrUpdate(w.store, def); err != nil {
		var frozen *domain.DefinitionFrozenError
		var invalid *domain.InvalidGraphError
		switch {
		case errors.As(err, &frozen):
			log.Warn(log.CatWatcher, "Skipping frozen definition",
				"key", def.Key, "instances", frozen.Instances)
		case errors.As(err, &invalid):
			log.Warn(log.CatWatcher, "Skipping invalid definition",
				"key", def.Key, "violations", len(invalid.Violations))
		default:
			log.ErrorErr(log.CatWatcher, "Failed to register definition", err, "key", def.Key)
		}
		return
	}
	log.Info(log.CatWatcher, "Reloaded definition", "key", def.Key, "path", path)
}

// RegisterOrUpdate publishes a definition, updating in place when the key
// is already registered. Used by the watcher and by the sync-on-startup
// path.
func RegisterOrUpdate(store *Store, def *domain.Definition) error {
	err := store.Register(def)
	var exists *domain.DefinitionExistsError
	if errors.As(err, &exists) {
		return store.Update(def)
	}
	return err
}

package resource

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// PathResolver maps a registry path to the file it is read from.
type PathResolver interface {
	Resolve(path string) (string, error)
}

// Watcher forwards file changes of registered sources to the registry.
// Events are coalesced per file over the debounce interval.
type Watcher struct {
	reg      *Registry
	resolver PathResolver
	debounce time.Duration
	log      *zap.Logger

	fs   *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	files  map[string]string // file -> registry path
	dirs   map[string]bool
	timers map[string]*time.Timer
}

// NewWatcher starts watching. Call Sync to pick up registered sources.
func NewWatcher(reg *Registry, resolver PathResolver, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		reg:      reg,
		resolver: resolver,
		debounce: debounce,
		log:      reg.log.Named("watcher"),
		fs:       fw,
		done:     make(chan struct{}),
		files:    make(map[string]string),
		dirs:     make(map[string]bool),
		timers:   make(map[string]*time.Timer),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Sync watches every source the registry has read so far.
func (w *Watcher) Sync() error {
	for _, path := range w.reg.SourcePaths() {
		if err := w.Watch(path); err != nil {
			return err
		}
	}
	return nil
}

// Watch starts watching the file behind a registry path. Directories are
// watched rather than files so that editors replacing files are seen.
func (w *Watcher) Watch(path string) error {
	file, err := w.resolver.Resolve(path)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	file, err = filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	dir := filepath.Dir(file)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.files[file] = path
	if w.dirs[dir] {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.dirs[dir] = true
	w.log.Debug("watching directory", zap.String("dir", dir))
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.changed(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) changed(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path, ok := w.files[filepath.Clean(file)]
	if !ok {
		return
	}
	if w.debounce <= 0 {
		w.reg.NotifyChanged(path)
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.reg.NotifyChanged(path)
	})
}

package watch

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives batches of settled files.
type Handler func(paths []string)

// Watcher monitors a directory tree and hands newly written matching
// files to a handler once the events have settled.
type Watcher struct {
	root    string
	pattern *regexp.Regexp
	handler Handler
	watcher *fsnotify.Watcher
	logger  *log.Logger
	delay   time.Duration

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New starts watching the directory tree under root. Files whose names
// match pattern are collected and, one debounce delay after the last
// event, passed to handler as one sorted batch.
func New(root string, pattern *regexp.Regexp, debounce time.Duration, handler Handler, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}

	w := &Watcher{
		root:    root,
		pattern: pattern,
		handler: handler,
		watcher: fsw,
		logger:  logger,
		delay:   debounce,
		pending: make(map[string]bool),
		done:    make(chan struct{}),
	}

	w.addRecursive(root)

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Close stops the watcher. Files still pending are dropped.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()

		w.closeErr = w.watcher.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(event.Name)
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !w.pattern.MatchString(event.Name) {
		return
	}

	w.schedule(event.Name)
}

// schedule records a path and restarts the settle timer.
func (w *Watcher) schedule(path string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.flush)
}

func (w *Watcher) flush() {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.handler(paths)
}

func (w *Watcher) addRecursive(path string) {
	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Printf("walk error for %s: %v", p, err)
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				w.logger.Printf("watcher add failure for %s: %v", p, err)
			}
		}
		return nil
	})
}

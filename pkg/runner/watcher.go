package runner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/declassify/pkg/parser"
)

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// Include and Exclude filter changed files like DiscoverFiles does.
	Include []string
	Exclude []string
	// Debounce groups rapid changes of one file. Zero means 200ms.
	Debounce time.Duration
	// OnReport receives the report of every re-run file. It is called from
	// timer goroutines and must be safe for concurrent use.
	OnReport func(FileReport)
}

// Watcher re-runs a Runner on source files as they change.
//
//	w, err := runner.NewWatcher(r, runner.WatchOptions{OnReport: print}, logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	err = w.Start("/path/to/project")
type Watcher struct {
	watcher *fsnotify.Watcher
	runner  *Runner
	options WatchOptions
	logger  *slog.Logger
	root    string

	timers  map[string]*time.Timer
	timerMu sync.Mutex

	stopChan chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewWatcher creates a Watcher over r.
func NewWatcher(r *Runner, options WatchOptions, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if options.Debounce == 0 {
		options.Debounce = 200 * time.Millisecond
	}
	return &Watcher{
		watcher:  w,
		runner:   r,
		options:  options,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}, nil
}

// Start watches root and every directory below it that is not excluded.
// It returns once the watches are in place; events are handled in the
// background until Stop.
func (w *Watcher) Start(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher already stopped")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root path: %w", err)
	}
	w.root = absRoot

	if err := w.watcher.Add(absRoot); err != nil {
		return fmt.Errorf("failed to watch %s: %w", absRoot, err)
	}
	if err := w.addTree(absRoot); err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}

	w.started = true
	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info("File watcher started", "root", absRoot)
	return nil
}

// Stop stops watching and cancels pending runs. It is idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopChan)
	w.mu.Unlock()

	w.timerMu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.timerMu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	w.logger.Info("File watcher stopped")
	return err
}

// Pending returns the number of scheduled runs.
func (w *Watcher) Pending() int {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	return len(w.timers)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if path == w.root {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	w.logger.Debug("File event", "op", event.Op.String(), "file", path)

	switch {
	case event.Has(fsnotify.Create) && isDir(path):
		if !w.ignoredDir(path) {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("Failed to watch directory", "path", path, "error", err)
			}
			if err := w.addTree(path); err != nil {
				w.logger.Warn("Failed to watch directory tree", "path", path, "error", err)
			}
		}

	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		if w.wants(path) {
			w.schedule(path)
		}

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// schedule runs path after the debounce delay. A later event for the
// same file restarts the delay.
func (w *Watcher) schedule(path string) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.options.Debounce, func() {
		w.timerMu.Lock()
		if w.timers[path] != timer {
			w.timerMu.Unlock()
			return
		}
		delete(w.timers, path)
		w.timerMu.Unlock()

		report := w.runner.RunFile(path)
		if w.options.OnReport != nil {
			w.options.OnReport(report)
		}
	})
	w.timers[path] = timer
}

func (w *Watcher) cancel(path string) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
		delete(w.timers, path)
	}
}

// wants reports whether a changed file is a source file selected by the
// include and exclude globs.
func (w *Watcher) wants(path string) bool {
	if parser.DetectDialect(path) == parser.DialectUnknown {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if matchAny(w.options.Exclude, rel) {
		return false
	}
	return len(w.options.Include) == 0 || matchAny(w.options.Include, rel)
}

func (w *Watcher) ignoredDir(path string) bool {
	if ignoredDirs[filepath.Base(path)] {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return matchAny(w.options.Exclude, filepath.ToSlash(rel))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Package watch observes backend source paths and enqueues sync triggers
// when they change. The watcher never touches the catalog or artifacts
// itself; it only notifies, and rapid change bursts are debounced into a
// single notification.
package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config controls what the watcher observes.
type Config struct {
	// Paths are the root directories to watch, recursively.
	Paths []string
	// Extensions limits notifications to files with these extensions
	// (e.g. ".py", ".go", ".sql"). Empty means every file counts.
	Extensions []string
	// Ignored are base-name glob patterns that never trigger.
	Ignored []string
	// Debounce is the quiet period before notify fires. Zero means the
	// default of 150ms.
	Debounce time.Duration
}

// Watcher monitors file system changes and invokes a notify callback after
// debouncing.
type Watcher struct {
	cfg      Config
	watcher  *fsnotify.Watcher
	debounce *debouncer
	notify   func()
	logger   *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a watcher that calls notify after each debounced burst of
// relevant changes.
func New(cfg Config, notify func(), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		cfg:     cfg,
		watcher: fsw,
		notify:  notify,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	delay := cfg.Debounce
	if delay <= 0 {
		delay = defaultDebounce
	}
	w.debounce = newDebouncer(delay, notify)
	return w, nil
}

// Start registers all watch directories and begins observing in the
// background.
func (w *Watcher) Start() error {
	dirs, err := w.findDirectories()
	if err != nil {
		return fmt.Errorf("enumerate watch directories: %w", err)
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no watchable directories under %v", w.cfg.Paths)
	}

	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}
	w.logger.Info("watching for changes", "directories", len(dirs), "paths", w.cfg.Paths)

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop halts observation. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
	w.debounce.stop()
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) || !w.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("source changed", "file", event.Name, "op", event.Op.String())
			w.debounce.touch()

			// New directories join the watch set so nested additions keep
			// triggering.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watcher.Add(event.Name)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-w.stop:
			return
		}
	}
}

// findDirectories walks each configured root and collects every
// subdirectory, skipping ignored and hidden ones.
func (w *Watcher) findDirectories() ([]string, error) {
	var dirs []string
	for _, root := range w.cfg.Paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if path != root && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			for _, pattern := range w.cfg.Ignored {
				if matched, _ := filepath.Match(pattern, base); matched {
					return filepath.SkipDir
				}
			}
			dirs = append(dirs, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range w.cfg.Ignored {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matches(path string) bool {
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, want := range w.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

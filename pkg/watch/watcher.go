// Package watch re-runs an analysis when fuzzer artifacts change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/fuzzlens/pkg/config"
)

// DefaultSuffixes are the artifact suffixes that trigger a re-run.
var DefaultSuffixes = []string{".data", ".data.yaml", ".covreport", ".json", ".yaml"}

// Watcher monitors an artifact directory and invokes a callback once the
// tree has been quiet for the debounce period.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	suffixes  []string
	path      string
	callback  func(changed []string)

	mu       sync.Mutex
	pending  map[string]struct{}
	lastSeen time.Time
	running  bool
}

// NewWatcher creates a new artifact watcher. A non-positive debounce
// defaults to 500ms and empty suffixes to DefaultSuffixes.
func NewWatcher(path string, cfg *config.Config, debounce time.Duration, suffixes []string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		suffixes:  suffixes,
		path:      path,
		pending:   make(map[string]struct{}),
	}, nil
}

// SetCallback sets the function called with the sorted changed paths.
func (w *Watcher) SetCallback(cb func(changed []string)) {
	w.callback = cb
}

func (w *Watcher) excludedDir(name string) bool {
	for _, excluded := range w.config.Exclude.Dirs {
		if name == excluded {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start watches until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path); err != nil {
		return err
	}

	color.Cyan("Watching for artifact changes in %s...", w.path)
	color.Cyan("Press Ctrl+C to stop")
	fmt.Println()

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) isArtifact(path string) bool {
	base := filepath.Base(path)
	for _, suf := range w.suffixes {
		if strings.HasSuffix(base, suf) {
			return true
		}
	}
	return false
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.excludedDir(info.Name()) {
				_ = w.addTree(path)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.path, path)
	if err != nil {
		rel = path
	}
	if w.config.ShouldExclude(rel) || !w.isArtifact(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.lastSeen = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending fires one callback for all changes once none has arrived
// for the debounce period. Callbacks never overlap.
func (w *Watcher) processPending() {
	w.mu.Lock()
	if len(w.pending) == 0 || w.running || time.Since(w.lastSeen) < w.debounce {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.running = true
	w.mu.Unlock()
	sort.Strings(changed)

	go func() {
		defer func() {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
		}()
		w.runCallback(changed)
	}()
}

func (w *Watcher) runCallback(changed []string) {
	if w.callback == nil {
		return
	}
	color.Yellow("\n%d artifact(s) changed", len(changed))
	for _, p := range changed {
		if rel, err := filepath.Rel(w.path, p); err == nil {
			p = rel
		}
		fmt.Printf("  %s\n", p)
	}
	fmt.Println(strings.Repeat("-", 40))

	w.callback(changed)

	fmt.Println()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}

// Package conflict watches isolated working copies for overlapping file
// modifications. Two tasks editing the same relative path will merge-
// conflict later, so surfacing the overlap while both are still running
// gives the operator a chance to intervene.
package conflict

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/stride-dev/stride/internal/logging"
)

// debounceWindow coalesces the burst of events editors produce per save.
const debounceWindow = 50 * time.Millisecond

// Overlap reports a file modified in more than one working copy.
type Overlap struct {
	RelativePath string    // path relative to each worktree root
	TaskIDs      []string  // tasks that touched the file
	LastModified time.Time // most recent modification seen
}

// Watcher tracks file writes across worktrees and reports overlaps.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *logging.Logger

	mu        sync.RWMutex
	worktrees map[string]string                 // task ID -> worktree path
	writes    map[string]map[string]time.Time   // relative path -> task ID -> last write
	overlaps  []Overlap
	onOverlap func([]Overlap)
	ignore    []glob.Glob

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWatcher creates a Watcher. ignorePatterns are glob patterns matched
// against relative paths and path components; .git and the worktree
// bookkeeping directory are always ignored.
func NewWatcher(log *logging.Logger, ignorePatterns []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	patterns := append([]string{".git", ".stride", "node_modules", ".DS_Store"}, ignorePatterns...)
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			log.Warn("invalid ignore pattern", "pattern", p, "error", err)
			continue
		}
		compiled = append(compiled, g)
	}

	return &Watcher{
		watcher:   fsw,
		log:       log.WithComponent("conflict"),
		worktrees: make(map[string]string),
		writes:    make(map[string]map[string]time.Time),
		ignore:    compiled,
		stopCh:    make(chan struct{}),
	}, nil
}

// SetOverlapCallback registers the callback invoked whenever the overlap
// set changes.
func (w *Watcher) SetOverlapCallback(cb func([]Overlap)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOverlap = cb
}

// Watch starts watching a task's worktree.
func (w *Watcher) Watch(taskID, worktreePath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.worktrees[taskID] = worktreePath
	if err := w.watcher.Add(worktreePath); err != nil {
		return err
	}
	// fsnotify only watches single directories, so register the tree.
	return w.watchDirRecursive(worktreePath)
}

func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if rel, relErr := filepath.Rel(root, path); relErr == nil && w.ignored(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// Unwatch stops watching a task's worktree and drops its writes.
func (w *Watcher) Unwatch(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path, ok := w.worktrees[taskID]
	if !ok {
		return
	}
	_ = w.watcher.Remove(path)
	delete(w.worktrees, taskID)

	for rel, byTask := range w.writes {
		delete(byTask, taskID)
		if len(byTask) == 0 {
			delete(w.writes, rel)
		}
	}
	w.recompute()
}

// Start begins processing filesystem events.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

// Overlaps returns a copy of the current overlap set.
func (w *Watcher) Overlaps() []Overlap {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Overlap, len(w.overlaps))
	copy(out, w.overlaps)
	return out
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(0)
	<-debounce.C

	pending := make(map[string]fsnotify.Event)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[event.Name] = event
			debounce.Reset(debounceWindow)

		case <-debounce.C:
			for _, event := range pending {
				w.handle(event)
			}
			pending = make(map[string]fsnotify.Event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var taskID, rel string
	for id, root := range w.worktrees {
		if strings.HasPrefix(event.Name, root+string(filepath.Separator)) {
			taskID = id
			rel, _ = filepath.Rel(root, event.Name)
			break
		}
	}
	if taskID == "" || w.ignored(rel) {
		return
	}

	rel = filepath.ToSlash(rel)
	if w.writes[rel] == nil {
		w.writes[rel] = make(map[string]time.Time)
	}
	w.writes[rel][taskID] = time.Now()

	w.recompute()
}

// ignored matches rel (and each of its components) against the ignore
// patterns.
func (w *Watcher) ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}
	for _, g := range w.ignore {
		if g.Match(rel) {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if g.Match(part) {
				return true
			}
		}
	}
	return false
}

// recompute rebuilds the overlap set from tracked writes. Caller holds
// the lock.
func (w *Watcher) recompute() {
	overlaps := make([]Overlap, 0)
	for rel, byTask := range w.writes {
		if len(byTask) < 2 {
			continue
		}
		o := Overlap{RelativePath: rel}
		for id, at := range byTask {
			o.TaskIDs = append(o.TaskIDs, id)
			if at.After(o.LastModified) {
				o.LastModified = at
			}
		}
		sort.Strings(o.TaskIDs)
		overlaps = append(overlaps, o)
	}

	changed := len(overlaps) != len(w.overlaps)
	w.overlaps = overlaps

	if len(overlaps) > 0 && w.onOverlap != nil {
		// Copy so the callback never races with our state.
		snapshot := make([]Overlap, len(overlaps))
		copy(snapshot, overlaps)
		go w.onOverlap(snapshot)
	} else if changed && len(overlaps) == 0 && w.onOverlap != nil {
		go w.onOverlap(nil)
	}

	for _, o := range overlaps {
		w.log.Warn("overlapping modification",
			"path", o.RelativePath, "tasks", strings.Join(o.TaskIDs, ","))
	}
}

package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/moby/patternmatcher"

	"github.com/bashhack/gitjournal/internal/logger"
)

// gitDirName is always excluded from watching.
const gitDirName = ".git"

// Op is the kind of mutation a Change reports.
type Op int

const (
	// OpAdd indicates a new file appeared.
	OpAdd Op = iota
	// OpChange indicates an existing file was written.
	OpChange
	// OpDelete indicates a file was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is a single file mutation under the watched root.
type Change struct {
	// Path is the absolute path of the file.
	Path string
	Op   Op
}

// Watcher reports file mutations under a directory tree. Directories are
// watched recursively, including ones created after Start.
type Watcher struct {
	root    string
	matcher *patternmatcher.PatternMatcher
	logger  logger.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool

	// Known directories and files, so a directory that disappears can be
	// reported file by file.
	treeMu sync.Mutex
	dirs   map[string]struct{}
	files  map[string]struct{}
}

// New creates a Watcher for root. Each ignore pattern is matched against
// root-relative, slash-separated paths with Docker-style glob semantics; a
// pattern without a separator matches at any depth, and a matching
// directory excludes its whole subtree.
func New(root string, ignore []string, log logger.Logger) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root %s: %w", root, err)
	}

	var patterns []string
	for _, p := range ignore {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		patterns = append(patterns, p)
		if !strings.Contains(p, "/") && !strings.HasPrefix(p, "**") {
			patterns = append(patterns, "**/"+p)
		}
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore pattern: %w", err)
	}

	return &Watcher{
		root:    absRoot,
		matcher: matcher,
		logger:  log,
		done:    make(chan struct{}),
		dirs:    make(map[string]struct{}),
		files:   make(map[string]struct{}),
	}, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string {
	return w.root
}

// Start registers watches on the existing tree and begins delivering
// changes to onChange from a background goroutine. Files already present
// are not reported.
func (w *Watcher) Start(onChange func(Change)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addTree(w.root, nil); err != nil {
		_ = fsw.Close()
		return err
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents(onChange)

	w.logger.Info("Watching %s (%d directories)", w.root, w.watchedDirs())
	return nil
}

// Close stops the watcher and waits for the event goroutine to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) processEvents(onChange func(Change)) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event, onChange)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warning("File watcher error: %v", err)
		}
	}
}

// handle converts one fsnotify event into zero or more changes.
func (w *Watcher) handle(event fsnotify.Event, onChange func(Change)) {
	path := filepath.Clean(event.Name)
	if w.ignored(path) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			// Gone again before we looked; a Remove will follow.
			return
		}
		if info.IsDir() {
			// Files can land in a new directory before its watch exists.
			if err := w.addTree(path, onChange); err != nil {
				w.logger.Warning("Failed to watch new directory %s: %v", path, err)
			}
			return
		}
		w.rememberFile(path)
		onChange(Change{Path: path, Op: OpAdd})

	case event.Has(fsnotify.Write):
		if w.isDir(path) {
			return
		}
		w.rememberFile(path)
		onChange(Change{Path: path, Op: OpChange})

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if contained, ok := w.forgetDir(path); ok {
			// Files inside a directory that is moved away get no events
			// of their own.
			for _, file := range contained {
				onChange(Change{Path: file, Op: OpDelete})
			}
			return
		}
		w.forgetFile(path)
		onChange(Change{Path: path, Op: OpDelete})
	}
}

// addTree watches dir and every non-ignored directory below it. When
// report is non-nil, files found along the way are reported as added.
func (w *Watcher) addTree(dir string, report func(Change)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warning("Skipping %s: %v", path, err)
			return nil
		}

		if w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			w.rememberFile(path)
			if report != nil && d.Type().IsRegular() {
				report(Change{Path: path, Op: OpAdd})
			}
			return nil
		}

		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.rememberDir(path)
		return nil
	})
}

// ignored reports whether path is excluded from watching. The root itself
// is never ignored.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == gitDirName {
			return true
		}
	}

	matched, err := w.matcher.MatchesOrParentMatches(rel)
	if err != nil {
		w.logger.Warning("Ignore pattern failed on %s: %v", rel, err)
		return false
	}
	return matched
}

func (w *Watcher) rememberDir(path string) {
	w.treeMu.Lock()
	defer w.treeMu.Unlock()
	w.dirs[path] = struct{}{}
}

func (w *Watcher) rememberFile(path string) {
	w.treeMu.Lock()
	defer w.treeMu.Unlock()
	w.files[path] = struct{}{}
}

func (w *Watcher) forgetFile(path string) {
	w.treeMu.Lock()
	defer w.treeMu.Unlock()
	delete(w.files, path)
}

func (w *Watcher) watchedDirs() int {
	w.treeMu.Lock()
	defer w.treeMu.Unlock()
	return len(w.dirs)
}

func (w *Watcher) isDir(path string) bool {
	w.treeMu.Lock()
	defer w.treeMu.Unlock()
	_, ok := w.dirs[path]
	return ok
}

// forgetDir drops path and everything known below it. It reports whether
// path was a watched directory and returns, sorted, the files that were
// still known inside it.
func (w *Watcher) forgetDir(path string) ([]string, bool) {
	w.treeMu.Lock()
	defer w.treeMu.Unlock()

	if _, ok := w.dirs[path]; !ok {
		return nil, false
	}

	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}

	var contained []string
	for file := range w.files {
		if strings.HasPrefix(file, prefix) {
			contained = append(contained, file)
			delete(w.files, file)
		}
	}
	sort.Strings(contained)
	return contained, true
}

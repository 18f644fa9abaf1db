// Package watch re-runs a callback when TOSCA documents change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nfvpack/nfvpack/pkg/util"
)

// DefaultDebounce is the quiet period before a batch of changes is reported.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives the changed YAML files of one debounced batch, sorted.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher observes files and directory trees.
type Watcher struct {
	paths    []string
	debounce time.Duration
	onChange ChangeFunc

	roots []string
	files map[string]bool
}

// New creates a watcher for the given files and directories. Directories are
// watched recursively.
func New(paths []string, debounce time.Duration, onChange ChangeFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		paths:    paths,
		debounce: debounce,
		onChange: onChange,
		files:    make(map[string]bool),
	}
}

// Run watches until ctx is cancelled. The callback runs on the Run goroutine,
// so a slow callback delays the next batch rather than overlapping it.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, p := range w.paths {
		if err := w.add(fw, p); err != nil {
			return err
		}
	}
	util.Infof("Watching %s", strings.Join(w.paths, ", "))

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			util.Debugf("Watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.underRoot(event.Name) {
					if err := w.addTree(fw, event.Name); err != nil {
						util.Warnf("watch: %v", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			util.WithField("op", event.Op.String()).Debugf("Changed: %s", event.Name)
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			clear(pending)
			w.onChange(ctx, changed)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			util.Warnf("watch: %v", err)
		}
	}
}

func (w *Watcher) add(fw *fsnotify.Watcher, p string) error {
	p = filepath.Clean(p)
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("watch %s: %w", p, err)
	}
	if info.IsDir() {
		w.roots = append(w.roots, p)
		return w.addTree(fw, p)
	}
	w.files[p] = true
	if err := fw.Add(filepath.Dir(p)); err != nil {
		return fmt.Errorf("watch %s: %w", p, err)
	}
	return nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) matches(name string) bool {
	name = filepath.Clean(name)
	if w.files[name] {
		return true
	}
	return IsTemplate(name) && w.underRoot(name)
}

func (w *Watcher) underRoot(name string) bool {
	for _, root := range w.roots {
		if rel, err := filepath.Rel(root, name); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// IsTemplate reports whether a file name looks like a TOSCA YAML document.
func IsTemplate(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}

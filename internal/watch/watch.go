// Package watch re-runs a tags update when project sources change.
//
// Every non-skipped directory under each project's source path is
// registered with fsnotify. Events for files matching the project's
// file-types are coalesced over a debounce window and then handed to a
// single callback.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/update-etags/internal/config"
	"github.com/phobologic/update-etags/internal/match"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 500 * time.Millisecond

// Config holds the parameters for a Watcher.
type Config struct {
	// Projects whose source trees are watched. Projects without a source
	// path are ignored.
	Projects []config.ProjectSpec

	// Matcher applies to file-types and skip-dirs patterns.
	Matcher match.Matcher

	// Debounce is the quiet period after the last event before OnChange
	// fires. Zero or negative values fall back to DefaultDebounce.
	Debounce time.Duration

	// OnChange receives the sorted, deduplicated absolute paths that
	// changed. It is never called concurrently with itself.
	OnChange func(ctx context.Context, changed []string) error
}

// Watcher monitors project trees. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	debounce time.Duration
	started  atomic.Bool
}

// New registers every project directory and returns a Watcher ready to Run.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{cfg: cfg, fsw: fsw, debounce: debounce}
	for _, p := range cfg.Projects {
		if !p.HasSource() {
			continue
		}
		if err := w.addTree(p, p.SourcePath); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// Retry once the current run finishes so pending changes are kept.
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		slog.Debug("sources changed", "files", len(changed))
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				slog.Error("watch: update failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			slog.Warn("watch: close fsnotify", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if !w.relevant(evt) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("watch: events dropped", "error", err)
				continue
			}
			slog.Warn("watch: fsnotify error", "error", err)
		}
	}
}

// relevant reports whether evt should trigger an update, registering
// newly created directories along the way.
func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Op == fsnotify.Chmod {
		return false
	}
	hit := false
	for _, p := range w.owners(evt.Name) {
		if w.skipped(p, evt.Name) {
			continue
		}
		if evt.Has(fsnotify.Create) {
			if fi, err := os.Stat(evt.Name); err == nil && fi.IsDir() {
				if err := w.addTree(p, evt.Name); err != nil {
					slog.Warn("watch: add new directory", "path", evt.Name, "error", err)
				}
				hit = true
				continue
			}
		}
		if w.cfg.Matcher.Matches(filepath.Base(evt.Name), p.FileTypes) {
			hit = true
			continue
		}
		// A removed or renamed directory may have held sources.
		if (evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename)) && slices.Contains(w.fsw.WatchList(), evt.Name) {
			hit = true
		}
	}
	return hit
}

// owners returns the projects whose source tree contains path.
func (w *Watcher) owners(path string) []config.ProjectSpec {
	var out []config.ProjectSpec
	for _, p := range w.cfg.Projects {
		if !p.HasSource() {
			continue
		}
		if path == p.SourcePath || strings.HasPrefix(path, p.SourcePath+string(filepath.Separator)) {
			out = append(out, p)
		}
	}
	return out
}

// skipped reports whether a directory between the project root and path
// matches the project's skip-dirs. path itself counts when it is a
// directory.
func (w *Watcher) skipped(p config.ProjectSpec, path string) bool {
	rel, err := filepath.Rel(p.SourcePath, path)
	if err != nil || rel == "." {
		return false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		parts = parts[:len(parts)-1]
	}
	for _, part := range parts {
		if w.cfg.Matcher.Matches(part, p.SkipDirs) {
			return true
		}
	}
	return false
}

// addTree registers start and every non-skipped directory below it.
func (w *Watcher) addTree(p config.ProjectSpec, start string) error {
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("watch: skipping inaccessible path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != p.SourcePath && w.cfg.Matcher.Matches(d.Name(), p.SkipDirs) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
}

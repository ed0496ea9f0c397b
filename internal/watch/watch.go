// Package watch reruns a build whenever its source directories change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
)

// DefaultDebounce is the quiet period after the last change before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc runs one build. Errors are logged and watching continues.
type BuildFunc func(ctx context.Context) error

// Options tunes a watch session.
type Options struct {
	Debounce time.Duration
	// Ignore reports paths whose changes never trigger a rebuild, such as
	// the outputs of the build itself.
	Ignore func(path string) bool
}

// Run builds once, then rebuilds after every burst of changes below dirs
// until ctx is cancelled. Builds never overlap; changes arriving during a
// build schedule exactly one follow-up build.
func Run(ctx context.Context, dirs []string, build BuildFunc, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	watcher, err := setupFileWatcher(dirs)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	rebuildReq, trigger, stop := setupRebuildDebouncer(opts.Debounce)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		rebuildWorker(ctx, build, rebuildReq)
	}()

	rebuildReq <- struct{}{}
	slog.Info("Watching for changes", logfields.Count(len(dirs)))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping watch")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleFileEvent(watcher, ev, opts.Ignore, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

// setupFileWatcher creates a watcher covering every directory below dirs.
func setupFileWatcher(dirs []string) (*fsnotify.Watcher, error) {
	for _, dir := range dirs {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			return nil, foundationerrors.NotFoundError("watch directory not found").
				WithContext("path", dir).
				Build()
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot create file watcher").Build()
	}
	for _, dir := range dirs {
		if err := addDirsRecursive(watcher, dir); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}
	return watcher, nil
}

// setupRebuildDebouncer returns a one-slot request channel and a trigger
// that posts to it once changes have been quiet for delay.
func setupRebuildDebouncer(delay time.Duration) (chan struct{}, func(), func()) {
	var mu sync.Mutex
	var timer *time.Timer
	rebuildReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		})
	}
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return rebuildReq, trigger, stop
}

// rebuildWorker serializes builds. A request posted while a build runs
// waits in the channel slot and produces a single follow-up build.
func rebuildWorker(ctx context.Context, build BuildFunc, rebuildReq <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-rebuildReq:
			start := time.Now()
			if err := build(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("rebuild failed", logfields.Error(err), logfields.Duration(time.Since(start)))
				continue
			}
			slog.Info("Rebuild complete", logfields.Duration(time.Since(start)))
		}
	}
}

func handleFileEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, ignore func(string) bool, trigger func()) {
	if ev.Op == fsnotify.Chmod || shouldIgnoreEvent(ev.Name) || (ignore != nil && ignore(ev.Name)) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(watcher, ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for hidden, editor swap and temporary files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "4913"
}

// IgnoreOutputs matches files named like one of names and anything below
// one of dirs. It describes what a build writes so the watcher does not
// trigger on its own output.
func IgnoreOutputs(names, dirs []string) func(path string) bool {
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if abs, err := filepath.Abs(d); err == nil {
			cleaned = append(cleaned, abs)
		}
	}
	return func(path string) bool {
		if slices.Contains(names, filepath.Base(path)) {
			return true
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		for _, d := range cleaned {
			if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}

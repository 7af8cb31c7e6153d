// internal/keyword/watch.go
package keyword

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events produced by a single file write
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc is called with each rebuilt library
type ReloadFunc func(lib *Library)

// Watcher keeps a Library current as template files change on disk.
// Readers call Library() at any time; it never blocks on a rebuild.
type Watcher struct {
	opts     BuildOptions
	debounce time.Duration
	current  atomic.Pointer[Library]
	onReload atomic.Pointer[ReloadFunc]
}

// NewWatcher creates a watcher seeded with an already built library.
func NewWatcher(initial *Library, opts BuildOptions) *Watcher {
	w := &Watcher{opts: opts, debounce: DefaultDebounce}
	if initial == nil {
		initial = NewLibrary()
	}
	w.current.Store(initial)
	return w
}

// Library returns the most recently built library
func (w *Watcher) Library() *Library {
	return w.current.Load()
}

// SetReloadFunc sets the function called after each rebuild. Pass nil to clear.
func (w *Watcher) SetReloadFunc(fn ReloadFunc) {
	if fn == nil {
		w.onReload.Store(nil)
		return
	}
	w.onReload.Store(&fn)
}

// Run watches the keyword directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	glob := w.opts.Glob
	if glob == "" {
		glob = DefaultGlob
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	logger.Info("watching keyword directory", "dir", w.opts.Dir, "glob", glob)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, glob) {
				continue
			}
			logger.Debug("keyword file changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("keyword watcher error", "err", err)

		case <-timer.C:
			lib, err := Build(ctx, w.opts)
			if err != nil {
				logger.Warn("rebuild keyword library", "err", err)
				continue
			}
			w.current.Store(lib)
			logger.Info("keyword library reloaded", "keywords", lib.Len())
			if fn := w.onReload.Load(); fn != nil {
				(*fn)(lib)
			}
		}
	}
}

func relevant(ev fsnotify.Event, glob string) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	ok, err := filepath.Match(glob, filepath.Base(ev.Name))
	return err == nil && ok
}

package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// FSWatcher watches a directory tree with fsnotify. New directories are
// added as they appear.
type FSWatcher struct {
	root      string
	opts      Options
	logger    *slog.Logger
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}

	mu      sync.RWMutex
	dirs    map[string]struct{}
	stopped bool

	droppedBatches atomic.Uint64
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, opts Options) (*FSWatcher, error) {
	opts = opts.WithDefaults()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, serrors.IOError("resolve watch root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, serrors.IOError(fmt.Sprintf("watch root %s", abs), err)
	}
	if !info.IsDir() {
		return nil, serrors.New(serrors.ErrCodeInvalidPath, fmt.Sprintf("watch root %s is not a directory", abs), nil)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, serrors.IOError("create fsnotify watcher", err)
	}

	return &FSWatcher{
		root:      abs,
		opts:      opts,
		logger:    opts.Logger,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.Logger),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		dirs:      make(map[string]struct{}),
	}, nil
}

// Start adds the tree and processes events until ctx is done or Stop is
// called. It blocks.
func (w *FSWatcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.logger.Info("watcher_started",
		slog.String("root", w.root),
		slog.Int("directories", w.WatchedDirs()))

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return nil
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// rel maps an absolute path to a rooted slash path.
func (w *FSWatcher) rel(abs string) (string, bool) {
	r, err := filepath.Rel(w.root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path.Clean("/" + filepath.ToSlash(r)), true
}

func (w *FSWatcher) skip(rel string) bool {
	if rel == "/" {
		return false
	}
	if w.opts.Skip != nil {
		return w.opts.Skip.SkipPath(rel)
	}
	return strings.HasPrefix(path.Base(rel), ".")
}

// addTree watches dir and every directory below it that is not skipped.
func (w *FSWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are left out
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, ok := w.rel(p)
		if !ok || w.skip(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return err
		}
		w.mu.Lock()
		w.dirs[rel] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

func (w *FSWatcher) handle(ev fsnotify.Event) {
	rel, ok := w.rel(ev.Name)
	if !ok || rel == "/" || w.skip(rel) {
		return
	}

	var op Operation
	isDir := false
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			isDir = true
			if err := w.addTree(ev.Name); err != nil {
				w.emitError(fmt.Errorf("watch %s: %w", rel, err))
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
		w.mu.Lock()
		if _, watched := w.dirs[rel]; watched {
			isDir = true
			delete(w.dirs, rel)
		}
		w.mu.Unlock()
	default:
		return
	}

	if op == OpModify {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return
		}
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

func (w *FSWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitEvents(batch)
		}
	}
}

func (w *FSWatcher) emitEvents(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		n := w.droppedBatches.Add(1)
		w.logger.Warn("watcher_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (w *FSWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("watcher_error", slog.String("error", err.Error()))
	}
}

// Stop closes the watcher and its channels. Safe to call twice.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fsw.Close()
	close(w.events)
	close(w.errors)
	return err
}

// Events returns debounced batches. It is closed by Stop.
func (w *FSWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watch errors. It is closed by Stop.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

// Root returns the absolute watched directory.
func (w *FSWatcher) Root() string {
	return w.root
}

// WatchedDirs returns how many directories are watched.
func (w *FSWatcher) WatchedDirs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.dirs)
}

// DroppedBatches returns how many batches were dropped on a full buffer.
func (w *FSWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

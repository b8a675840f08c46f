// Package watch turns file-system notifications under a vault into
// coalesced per-file session events.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notegraph/internal/debounce"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/session"
	"github.com/starford/notegraph/internal/storage"
)

const (
	DefaultDelay   = 150 * time.Millisecond
	reconcileDelay = 200 * time.Millisecond
)

// Handler consumes coalesced vault events.
type Handler interface {
	HandleEvent(ctx context.Context, ev session.Event) error
	// Tracked lists the files the handler currently knows about.
	Tracked() []string
}

// Watcher watches a vault directory tree.
type Watcher struct {
	vault   *storage.FS
	handler Handler
	delay   time.Duration
	log     *slog.Logger

	timers  *debounce.Registry
	created map[string]bool // paths with a Create inside the current window
	ready   chan string
	stop    chan struct{}
	started chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the per-path quiescence window.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a Watcher for vault that reports to h.
func New(vault *storage.FS, h Handler, opts ...Option) *Watcher {
	w := &Watcher{
		vault:   vault,
		handler: h,
		delay:   DefaultDelay,
		log:     slog.Default(),
		timers:  debounce.New(),
		created: make(map[string]bool),
		ready:   make(chan string),
		stop:    make(chan struct{}),
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes file-system events until ctx is cancelled. A Watcher runs
// at most once.
//
// New directories created at runtime are added to the watch list and their
// notes reported. Rename events trigger a reconciliation pass that compares
// the handler's tracked files against the disk.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	root := w.vault.Root()
	if err := w.addDirsRecursive(fw, root); err != nil {
		return err
	}
	defer func() {
		close(w.stop)
		w.timers.CancelAll()
	}()

	close(w.started)
	w.log.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher: stopped")
			return nil

		case rel := <-w.ready:
			w.flush(ctx, rel)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// Started is closed once every existing directory is being watched. Changes
// made after that point are reported.
func (w *Watcher) Started() <-chan struct{} {
	return w.started
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.vault.Root(), ev.Name)
	if err != nil || w.vault.Ignored(rel) {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if addErr := w.addDirsRecursive(fw, ev.Name); addErr != nil {
				w.log.Warn("watcher: add new dir failed",
					slog.String("path", rel),
					slog.String("error", addErr.Error()))
			}
			w.scanNewDir(ev.Name)
			return
		}
	}

	if ev.Op&fsnotify.Rename != 0 && !models.IsNote(rel) {
		// A renamed directory: its notes vanished without individual events.
		w.scheduleReconcile()
		return
	}
	if !models.IsNote(rel) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.schedule(rel, true)
	case ev.Op&(fsnotify.Write|fsnotify.Remove) != 0:
		w.schedule(rel, false)
	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports Rename on the old path only; the new path
		// arrives as a Create.
		w.schedule(rel, false)
		w.scheduleReconcile()
	}
}

// scheduleReconcile runs a reconcile pass once the path timers settle.
func (w *Watcher) scheduleReconcile() {
	w.timers.Schedule("\x00reconcile", reconcileDelay, func() {
		select {
		case w.ready <- "":
		case <-w.stop:
		}
	})
}

// schedule coalesces events for rel into one flush after the quiet window.
func (w *Watcher) schedule(rel string, created bool) {
	if created {
		w.created[rel] = true
	}
	w.timers.Schedule(rel, w.delay, func() {
		select {
		case w.ready <- rel:
		case <-w.stop:
		}
	})
}

// flush reports the net change of rel, decided by what is on disk now.
func (w *Watcher) flush(ctx context.Context, rel string) {
	if rel == "" {
		w.reconcile(ctx)
		return
	}
	kind := session.EventChanged
	if w.created[rel] {
		kind = session.EventAdded
	}
	delete(w.created, rel)

	abs := filepath.Join(w.vault.Root(), filepath.FromSlash(rel))
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		kind = session.EventDeleted
	}
	w.dispatch(ctx, session.Event{Kind: kind, Filename: rel})
}

func (w *Watcher) dispatch(ctx context.Context, ev session.Event) {
	if err := w.handler.HandleEvent(ctx, ev); err != nil {
		w.log.Warn("watcher: handle event failed",
			slog.String("path", ev.Filename),
			slog.String("kind", ev.Kind.String()),
			slog.String("error", err.Error()))
		return
	}
	w.log.Debug("watcher: handled", slog.String("path", ev.Filename), slog.String("kind", ev.Kind.String()))
}

// reconcile removes tracked files that no longer exist on disk and reports
// on-disk notes the handler does not know about.
func (w *Watcher) reconcile(ctx context.Context) {
	onDisk, err := w.vault.List()
	if err != nil {
		w.log.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}
	disk := make(map[string]bool, len(onDisk))
	for _, p := range onDisk {
		disk[p] = true
	}
	tracked := make(map[string]bool)
	for _, p := range w.handler.Tracked() {
		tracked[p] = true
		if !disk[p] {
			w.dispatch(ctx, session.Event{Kind: session.EventDeleted, Filename: p})
		}
	}
	for _, p := range onDisk {
		if !tracked[p] {
			w.dispatch(ctx, session.Event{Kind: session.EventAdded, Filename: p})
		}
	}
}

// scanNewDir reports the notes already present in a newly created directory.
func (w *Watcher) scanNewDir(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !models.IsNote(p) {
			return nil
		}
		rel, relErr := filepath.Rel(w.vault.Root(), p)
		if relErr != nil || w.vault.Ignored(rel) {
			return nil
		}
		w.schedule(filepath.ToSlash(rel), true)
		return nil
	})
}

// addDirsRecursive adds root and all its non-ignored subdirectories.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.vault.Root(), p); relErr == nil && rel != "." && w.vault.Ignored(rel) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}

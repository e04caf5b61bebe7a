// Package watcher keeps the source index current while a debug session runs.
//
// Files created, removed or renamed below the source roots are reported as
// events; Sync applies them to an index so short-name resolution sees new
// files without a rescan. Writes are not reported: the index only tracks
// which files exist.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op is a change to the set of files below a root.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Has returns true if the operation includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is one change below a watched root.
type Event struct {
	Path string
	Op   Op
}

// Config holds watcher options.
type Config struct {
	// BufferSize is the capacity of the event and error channels.
	BufferSize int

	// IgnorePatterns are base-name globs (filepath.Match syntax) to skip,
	// e.g. "bin-debug" or "*.swf".
	IgnorePatterns []string

	// IgnoreHidden skips names starting with a dot.
	IgnoreHidden bool

	Logger *slog.Logger
}

// DefaultConfig skips Flash Builder output folders and compiled SWFs.
func DefaultConfig() Config {
	return Config{
		BufferSize:     100,
		IgnorePatterns: []string{"bin-debug", "bin-release", "*.swf"},
		IgnoreHidden:   true,
	}
}

// Option configures a watcher.
type Option func(*Config)

func WithBufferSize(size int) Option {
	return func(c *Config) { c.BufferSize = size }
}

func WithIgnorePatterns(patterns []string) Option {
	return func(c *Config) { c.IgnorePatterns = patterns }
}

func WithIgnoreHidden(ignore bool) Option {
	return func(c *Config) { c.IgnoreHidden = ignore }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Watcher reports file creation and removal below source roots. New
// directories are watched as they appear.
type Watcher struct {
	fsw    *fsnotify.Watcher
	config Config

	mu     sync.Mutex
	dirs   map[string]struct{}
	closed bool

	events chan Event
	errs   chan error
	stop   chan struct{}
	loop   sync.WaitGroup
}

// New starts a watcher with no roots.
func New(opts ...Option) (*Watcher, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:    fsw,
		config: cfg,
		dirs:   make(map[string]struct{}),
		events: make(chan Event, cfg.BufferSize),
		errs:   make(chan error, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	w.loop.Add(1)
	go w.run()
	return w, nil
}

// Watch watches a single directory.
func (w *Watcher) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.dirs[abs]; ok {
		return ErrAlreadyWatching
	}
	if err := w.fsw.Add(abs); err != nil {
		return err
	}
	w.dirs[abs] = struct{}{}
	return nil
}

// WatchRecursive watches root and every directory below it that is not
// ignored. Directories that cannot be watched are reported on Errors.
func (w *Watcher) WatchRecursive(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.Watch(abs)
	}

	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != abs && w.ignored(p) {
			return filepath.SkipDir
		}
		if err := w.Watch(p); err != nil && !errors.Is(err, ErrAlreadyWatching) {
			w.report(err)
		}
		return nil
	})
}

// IsWatching reports whether dir is watched.
func (w *Watcher) IsWatching(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirs[abs]
	return ok
}

func (w *Watcher) Events() <-chan Event { return w.events }

func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the watcher and closes both channels.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stop)
	w.mu.Unlock()

	w.loop.Wait()
	close(w.events)
	close(w.errs)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer w.loop.Done()
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	op := translate(ev.Op)
	if op == 0 || w.ignored(ev.Name) {
		return
	}

	select {
	case w.events <- Event{Path: ev.Name, Op: op}:
	default:
		w.report(errors.New("event channel full, dropping event"))
	}

	if op.Has(OpCreate) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.WatchRecursive(ev.Name)
		}
	}
}

// translate keeps the operations that change which files exist.
func translate(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= OpCreate
	}
	if op.Has(fsnotify.Remove) {
		out |= OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= OpRename
	}
	return out
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if w.config.IgnoreHidden && len(base) > 0 && base[0] == '.' {
		return true
	}
	for _, pattern := range w.config.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) report(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// Index is the part of the source index the watcher updates.
type Index interface {
	Add(path string) error
	Remove(path string) error
	Scan(dir string) error
}

// Sync applies events from w to idx until ctx is cancelled or w closes.
// Index errors are logged at debug level.
func Sync(ctx context.Context, w *Watcher, idx Index) {
	logger := w.config.Logger
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			if err := apply(idx, ev); err != nil && logger != nil {
				logger.Debug("source index update", "path", ev.Path, "op", ev.Op.String(), "error", err)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			if logger != nil {
				logger.Warn("source watcher error", "error", err)
			}
		}
	}
}

// apply updates idx for one event. A renamed path is gone; its new name
// arrives as a separate create.
func apply(idx Index, ev Event) error {
	switch {
	case ev.Op.Has(OpRemove), ev.Op.Has(OpRename):
		return idx.Remove(ev.Path)
	case ev.Op.Has(OpCreate):
		if st, err := os.Stat(ev.Path); err == nil && st.IsDir() {
			return idx.Scan(ev.Path)
		}
		return idx.Add(ev.Path)
	}
	return nil
}

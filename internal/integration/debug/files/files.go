package files

import (
	"errors"
	"path"
	"strconv"
	"strings"
	"sync"
)

// MainWorker is the worker id of the main thread.
const MainWorker = -1

// ErrUnknownFile is returned when a file cannot be resolved.
var ErrUnknownFile = errors.New("unknown file")

// Entry is one line of "show files" output.
type Entry struct {
	ID   string
	Path string
	Name string
}

// ParseEntry parses a line like
//
//	12 /home/me/proj/src;com/acme;Foo.as, Foo.as
//
// fdb separates the source root, the package directory and the file name
// with ';'. Lines that do not match return false.
func ParseEntry(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	sp := strings.IndexByte(line, ' ')
	if sp <= 0 {
		return Entry{}, false
	}
	id := line[:sp]
	if _, err := strconv.Atoi(id); err != nil {
		return Entry{}, false
	}

	rest := line[sp+1:]
	comma := strings.LastIndex(rest, ", ")
	if comma < 0 {
		return Entry{}, false
	}
	full := strings.TrimSpace(rest[:comma])
	name := strings.TrimSpace(rest[comma+2:])
	if full == "" || name == "" {
		return Entry{}, false
	}

	full = strings.ReplaceAll(full, ";;", ";")
	full = strings.ReplaceAll(full, ";", "/")
	full = strings.ReplaceAll(full, "//", "/")
	full = strings.ReplaceAll(full, `\`, "/")
	return Entry{ID: id, Path: full, Name: name}, true
}

// table is the file list of one worker.
type table struct {
	idToPath    map[string]string
	pathToID    map[string]string
	nameToPaths map[string][]string
}

func newTable() *table {
	return &table{
		idToPath:    make(map[string]string),
		pathToID:    make(map[string]string),
		nameToPaths: make(map[string][]string),
	}
}

func (t *table) add(e Entry) {
	t.idToPath[e.ID] = e.Path
	t.pathToID[e.Path] = e.ID
	for _, p := range t.nameToPaths[e.Name] {
		if p == e.Path {
			return
		}
	}
	t.nameToPaths[e.Name] = append(t.nameToPaths[e.Name], e.Path)
}

// Loader fetches "show files" output for a worker. It runs on the caller's
// goroutine, which for the debugger is the dispatcher.
type Loader func(worker int) (string, error)

// Map holds the file tables of all workers.
//
// Tables are written only by the goroutine that owns the fdb connection;
// other goroutines read through the same lock and may see a table that is
// replaced immediately afterward.
type Map struct {
	mu       sync.RWMutex
	tables   map[int]*table
	upToDate map[int]bool
	load     Loader
}

// NewMap creates a map that refreshes stale tables with load.
func NewMap(load Loader) *Map {
	return &Map{
		tables:   make(map[int]*table),
		upToDate: make(map[int]bool),
		load:     load,
	}
}

// Invalidate marks every table stale. The next lookup that allows updates
// reloads it.
func (m *Map) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upToDate = make(map[int]bool)
}

// Stale reports whether the worker's table needs a reload.
func (m *Map) Stale(worker int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return !m.upToDate[worker]
}

// Update replaces the worker's table with the parsed output.
func (m *Map) Update(worker int, output string) {
	t := newTable()
	for _, line := range strings.Split(output, "\n") {
		if e, ok := ParseEntry(line); ok {
			t.add(e)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables[worker] = t
	m.upToDate[worker] = true
}

// Refresh reloads the worker's table if it is stale.
func (m *Map) Refresh(worker int) error {
	if m.load == nil || !m.Stale(worker) {
		return nil
	}
	out, err := m.load(worker)
	if err != nil {
		return err
	}
	m.Update(worker, out)
	return nil
}

// IDFor returns the id of path in the main worker, refreshing first.
func (m *Map) IDFor(p string) (string, bool) {
	_ = m.Refresh(MainWorker)
	return m.IDForNoUpdate(p)
}

// IDForNoUpdate returns the id of path in the main worker without
// reloading.
func (m *Map) IDForNoUpdate(p string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tables[MainWorker]
	if t == nil {
		return "", false
	}
	id, ok := t.pathToID[normalizePath(p)]
	return id, ok
}

// PathFor returns the path recorded for id in worker.
func (m *Map) PathFor(worker int, id string) (string, bool) {
	_ = m.Refresh(worker)

	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tables[worker]
	if t == nil {
		return "", false
	}
	p, ok := t.idToPath[id]
	return p, ok
}

// PathsByName returns the paths recorded for a short name in worker.
func (m *Map) PathsByName(worker int, name string) []string {
	_ = m.Refresh(worker)

	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tables[worker]
	if t == nil {
		return nil
	}
	return append([]string(nil), t.nameToPaths[name]...)
}

func normalizePath(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

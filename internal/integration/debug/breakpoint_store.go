package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// BreakpointStore keeps the user's breakpoints across sessions. It is the
// list the front end edits; a Session only sees the breakpoints synced
// to it.
type BreakpointStore struct {
	mu sync.RWMutex

	// All breakpoints by ID
	breakpoints map[int]*Breakpoint

	// Breakpoints grouped by file path
	byPath map[string][]*Breakpoint

	nextID int

	// Persistence file path
	persistPath string
}

// NewBreakpointStore creates an empty store.
func NewBreakpointStore() *BreakpointStore {
	return &BreakpointStore{
		breakpoints: make(map[int]*Breakpoint),
		byPath:      make(map[string][]*Breakpoint),
		nextID:      1,
	}
}

// SetPersistPath sets the file path for breakpoint persistence.
func (m *BreakpointStore) SetPersistPath(path string) {
	m.mu.Lock()
	m.persistPath = path
	m.mu.Unlock()
}

func (m *BreakpointStore) allocateID() int {
	id := m.nextID
	m.nextID++
	return id
}

func (m *BreakpointStore) insert(bp *Breakpoint) {
	bp.ID = m.allocateID()
	m.breakpoints[bp.ID] = bp
	m.byPath[bp.Path] = append(m.byPath[bp.Path], bp)
}

// Add adds a suspending breakpoint at a 0-based line.
func (m *BreakpointStore) Add(path string, line int) *Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	bp := NewBreakpoint(path, line)
	m.insert(bp)
	return bp
}

// AddConditional adds a breakpoint that halts only when condition is true.
func (m *BreakpointStore) AddConditional(path string, line int, condition string) *Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	bp := NewBreakpoint(path, line)
	bp.Condition = condition
	m.insert(bp)
	return bp
}

// AddLogPoint adds a breakpoint that prints logExpr and does not halt.
func (m *BreakpointStore) AddLogPoint(path string, line int, logExpr string) *Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	bp := NewBreakpoint(path, line)
	bp.LogMessage = logExpr
	bp.Suspend = false
	m.insert(bp)
	return bp
}

// Remove removes a breakpoint by ID.
func (m *BreakpointStore) Remove(id int) (*Breakpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bp, ok := m.breakpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBreakpointNotFound, id)
	}
	delete(m.breakpoints, id)
	m.removeFromPath(bp.Path, id)
	return bp, nil
}

func (m *BreakpointStore) removeFromPath(path string, id int) {
	bps := m.byPath[path]
	for i, bp := range bps {
		if bp.ID == id {
			bps = append(bps[:i], bps[i+1:]...)
			break
		}
	}
	if len(bps) == 0 {
		delete(m.byPath, path)
		return
	}
	m.byPath[path] = bps
}

// Get returns a breakpoint by ID.
func (m *BreakpointStore) Get(id int) (*Breakpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bp, ok := m.breakpoints[id]
	return bp, ok
}

// At returns the breakpoint on a line, if any.
func (m *BreakpointStore) At(path string, line int) (*Breakpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, bp := range m.byPath[path] {
		if bp.Line == line {
			return bp, true
		}
	}
	return nil, false
}

// ForPath returns the breakpoints in a file.
func (m *BreakpointStore) ForPath(path string) []*Breakpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Breakpoint, len(m.byPath[path]))
	copy(result, m.byPath[path])
	return result
}

// All returns all breakpoints ordered by ID.
func (m *BreakpointStore) All() []*Breakpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Breakpoint, 0, len(m.breakpoints))
	for _, bp := range m.breakpoints {
		result = append(result, bp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Toggle removes the breakpoint on a line or adds one. It reports whether
// a breakpoint was added.
func (m *BreakpointStore) Toggle(path string, line int) (*Breakpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bp := range m.byPath[path] {
		if bp.Line == line {
			delete(m.breakpoints, bp.ID)
			m.removeFromPath(path, bp.ID)
			return bp, false
		}
	}
	bp := NewBreakpoint(path, line)
	m.insert(bp)
	return bp, true
}

// SetCondition replaces breakpoint id with a copy that has the given
// condition; "" makes it unconditional. It returns both versions: a session
// holding old must unregister it and register updated.
func (m *BreakpointStore) SetCondition(id int, condition string) (old, updated *Breakpoint, err error) {
	return m.update(id, func(bp *Breakpoint) { bp.Condition = condition })
}

// SetLogMessage replaces breakpoint id with a copy that prints logExpr
// when hit. It returns both versions, like SetCondition.
func (m *BreakpointStore) SetLogMessage(id int, logExpr string) (old, updated *Breakpoint, err error) {
	return m.update(id, func(bp *Breakpoint) { bp.LogMessage = logExpr })
}

// update swaps in an edited copy so a session reading old is never
// written to.
func (m *BreakpointStore) update(id int, edit func(*Breakpoint)) (*Breakpoint, *Breakpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.breakpoints[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrBreakpointNotFound, id)
	}
	updated := *old
	edit(&updated)
	m.breakpoints[id] = &updated
	for i, bp := range m.byPath[old.Path] {
		if bp == old {
			m.byPath[old.Path][i] = &updated
		}
	}
	return old, &updated, nil
}

// ClearAll removes all breakpoints and returns them ordered by ID.
func (m *BreakpointStore) ClearAll() []*Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := make([]*Breakpoint, 0, len(m.breakpoints))
	for _, bp := range m.breakpoints {
		removed = append(removed, bp)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	m.breakpoints = make(map[int]*Breakpoint)
	m.byPath = make(map[string][]*Breakpoint)
	return removed
}

// SyncToSession registers every stored breakpoint with s.
func (m *BreakpointStore) SyncToSession(s *Session) error {
	if s == nil {
		return fmt.Errorf("no session attached")
	}
	for _, bp := range m.All() {
		if err := s.RegisterBreakpoint(bp); err != nil {
			return fmt.Errorf("register breakpoint %d: %w", bp.ID, err)
		}
	}
	return nil
}

// persistedBreakpoints is the on-disk format.
type persistedBreakpoints struct {
	Version     int           `json:"version"`
	Breakpoints []*Breakpoint `json:"breakpoints"`
}

// Save writes the breakpoints to the persist path. An empty store removes
// the file, so deleted breakpoints do not come back on the next Load.
func (m *BreakpointStore) Save() error {
	path := func() string {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.persistPath
	}()
	if path == "" {
		return fmt.Errorf("persist path not set")
	}

	all := m.All()
	if len(all) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove file: %w", err)
		}
		return nil
	}

	data := persistedBreakpoints{
		Version:     1,
		Breakpoints: all,
	}
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal breakpoints: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Load replaces the store's content with the persisted breakpoints. A
// missing file leaves the store empty.
func (m *BreakpointStore) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.persistPath == "" {
		return fmt.Errorf("persist path not set")
	}

	content, err := os.ReadFile(m.persistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read file: %w", err)
	}

	var data persistedBreakpoints
	if err := json.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("unmarshal breakpoints: %w", err)
	}

	m.breakpoints = make(map[int]*Breakpoint)
	m.byPath = make(map[string][]*Breakpoint)

	maxID := 0
	for _, bp := range data.Breakpoints {
		if bp == nil || bp.Path == "" {
			continue
		}
		m.breakpoints[bp.ID] = bp
		m.byPath[bp.Path] = append(m.byPath[bp.Path], bp)
		if bp.ID > maxID {
			maxID = bp.ID
		}
	}
	m.nextID = maxID + 1
	return nil
}

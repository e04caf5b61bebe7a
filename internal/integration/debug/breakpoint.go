package debug

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

// Position is a 0-based line in a source file.
type Position struct {
	File string
	Line int
}

// String returns "file:line" with a 1-based line.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line+1)
}

// Breakpoint is a user breakpoint on a source line.
type Breakpoint struct {
	ID         int    `json:"id"`
	Path       string `json:"path"`
	Line       int    `json:"line"` // 0-based
	Condition  string `json:"condition,omitempty"`
	LogMessage string `json:"logMessage,omitempty"`
	Suspend    bool   `json:"suspend"`
}

// NewBreakpoint returns a suspending breakpoint at a 0-based line.
func NewBreakpoint(path string, line int) *Breakpoint {
	return &Breakpoint{Path: path, Line: line, Suspend: true}
}

// Position returns where the breakpoint is set.
func (bp *Breakpoint) Position() Position {
	return Position{File: bp.Path, Line: bp.Line}
}

// BreakpointStatus is what fdb made of a breakpoint.
type BreakpointStatus int

const (
	// BreakpointPending is queued but not yet sent.
	BreakpointPending BreakpointStatus = iota
	// BreakpointRegistered is created in fdb but not resolved to code yet.
	BreakpointRegistered
	// BreakpointVerified is resolved to executable code.
	BreakpointVerified
	// BreakpointInvalid was rejected by fdb.
	BreakpointInvalid
)

// String returns a string representation of the status.
func (s BreakpointStatus) String() string {
	switch s {
	case BreakpointPending:
		return "pending"
	case BreakpointRegistered:
		return "registered"
	case BreakpointVerified:
		return "verified"
	case BreakpointInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// BreakpointInfo is a snapshot of one breakpoint.
type BreakpointInfo struct {
	Breakpoint *Breakpoint
	Index      int // fdb's number, 0 while unknown
	Status     BreakpointStatus
	Message    string
}

// breakpointTable maps fdb breakpoint numbers to breakpoints, one to one.
// It is written only by the dispatcher.
type breakpointTable struct {
	mu       sync.RWMutex
	byIndex  map[int]*Breakpoint
	indexOf  map[*Breakpoint]int
	status   map[*Breakpoint]BreakpointStatus
	messages map[*Breakpoint]string
	retried  map[*Breakpoint]bool
}

func newBreakpointTable() *breakpointTable {
	return &breakpointTable{
		byIndex:  make(map[int]*Breakpoint),
		indexOf:  make(map[*Breakpoint]int),
		status:   make(map[*Breakpoint]BreakpointStatus),
		messages: make(map[*Breakpoint]string),
		retried:  make(map[*Breakpoint]bool),
	}
}

func (t *breakpointTable) track(bp *Breakpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.status[bp]; !ok {
		t.status[bp] = BreakpointPending
	}
}

// bind records fdb's number for bp, dropping stale pairs on either side.
func (t *breakpointTable) bind(bp *Breakpoint, index int, status BreakpointStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.indexOf[bp]; ok {
		delete(t.byIndex, old)
	}
	if other, ok := t.byIndex[index]; ok {
		delete(t.indexOf, other)
	}
	t.byIndex[index] = bp
	t.indexOf[bp] = index
	t.status[bp] = status
	delete(t.messages, bp)
}

func (t *breakpointTable) lookup(index int) (*Breakpoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bp, ok := t.byIndex[index]
	return bp, ok
}

func (t *breakpointTable) indexFor(bp *Breakpoint) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.indexOf[bp]
	return i, ok
}

func (t *breakpointTable) setStatus(index int, status BreakpointStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bp, ok := t.byIndex[index]
	if !ok {
		return
	}
	t.status[bp] = status
	t.messages[bp] = message
}

func (t *breakpointTable) invalidate(bp *Breakpoint, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status[bp] = BreakpointInvalid
	t.messages[bp] = message
}

// markRetried reports whether bp may be retried, and records the retry.
func (t *breakpointTable) markRetried(bp *Breakpoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retried[bp] {
		return false
	}
	t.retried[bp] = true
	return true
}

func (t *breakpointTable) forget(bp *Breakpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.indexOf[bp]; ok {
		delete(t.byIndex, i)
	}
	delete(t.indexOf, bp)
	delete(t.status, bp)
	delete(t.messages, bp)
	delete(t.retried, bp)
}

func (t *breakpointTable) forgetIndex(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bp, ok := t.byIndex[index]; ok {
		delete(t.indexOf, bp)
	}
	delete(t.byIndex, index)
}

func (t *breakpointTable) snapshot() []BreakpointInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]BreakpointInfo, 0, len(t.status))
	for bp, st := range t.status {
		out = append(out, BreakpointInfo{
			Breakpoint: bp,
			Index:      t.indexOf[bp],
			Status:     st,
			Message:    t.messages[bp],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Breakpoint, out[j].Breakpoint
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})
	return out
}

// Breakpoints returns a snapshot of the breakpoints sent to fdb.
func (s *Session) Breakpoints() []BreakpointInfo {
	return s.breakpoints.snapshot()
}

// RegisterBreakpoint sets bp in fdb. A breakpoint in a file outside the
// project is skipped when the project has a file with the same qualified
// name; the player runs the project's copy.
func (s *Session) RegisterBreakpoint(bp *Breakpoint) error {
	if s.scope != nil && !s.scope.Contains(bp.Path) && s.scope.HasEquivalent(bp.Path) {
		s.logger.Debug("breakpoint skipped, project has an equivalent file", "path", bp.Path)
		return nil
	}
	return s.enqueue(s.insertCommand(bp))
}

// UnregisterBreakpoint removes bp from fdb.
func (s *Session) UnregisterBreakpoint(bp *Breakpoint) error {
	cmd := fdb.NewLazy(fdb.KindBreakpointDelete, func() string {
		if i, ok := s.breakpoints.indexFor(bp); ok {
			return "delete " + strconv.Itoa(i)
		}
		return ""
	}, fdb.OutputSpecial, fdb.Suspended, fdb.Suspended, func(string) fdb.Progress {
		s.breakpoints.forget(bp)
		return fdb.Done
	})
	return s.enqueue(cmd)
}

// RunToPosition sets a temporary breakpoint at p and resumes. The
// breakpoint is deleted when it is hit.
func (s *Session) RunToPosition(p Position) error {
	return s.enqueue(s.breakCommand(p, func(text string) fdb.Progress {
		res := s.parseInsert(text)
		if !res.created {
			s.console.Print("Cannot run to "+p.String()+": "+res.message+"\n", OutputSystem)
			return fdb.Done
		}
		_ = s.queue.PushFront(fdb.Continue())
		return fdb.Done
	}))
}

func (s *Session) breakCommand(p Position, h fdb.Handler) *fdb.Command {
	return fdb.NewLazy(fdb.KindBreakpointInsert, func() string {
		return "break " + s.files.Reference(p.File) + ":" + strconv.Itoa(p.Line+1)
	}, fdb.OutputSpecial, fdb.Suspended, fdb.Suspended, h)
}

func (s *Session) insertCommand(bp *Breakpoint) *fdb.Command {
	return s.breakCommand(bp.Position(), func(text string) fdb.Progress {
		s.breakpoints.track(bp)
		res := s.parseInsert(text)
		switch {
		case res.created:
			status := BreakpointVerified
			if res.unresolved {
				status = BreakpointRegistered
			}
			s.breakpoints.bind(bp, res.index, status)
		case res.ambiguous:
			s.retryAmbiguous(bp)
		default:
			s.breakpoints.invalidate(bp, res.message)
		}
		return fdb.Done
	})
}

// retryAmbiguous sets bp once more by file id after fdb found several
// files with its name.
func (s *Session) retryAmbiguous(bp *Breakpoint) {
	s.files.Files().Invalidate()
	if _, ok := s.files.Files().IDFor(bp.Path); ok && s.breakpoints.markRetried(bp) {
		_ = s.queue.PushFront(s.insertCommand(bp))
		return
	}
	s.breakpoints.invalidate(bp, "ambiguous file name")
}

// deleteIndex removes an fdb breakpoint by number.
func (s *Session) deleteIndex(index int) *fdb.Command {
	return fdb.New(fdb.KindBreakpointDelete, "delete "+strconv.Itoa(index),
		fdb.OutputSpecial, fdb.Suspended, fdb.Suspended, func(string) fdb.Progress {
			s.breakpoints.forgetIndex(index)
			return fdb.Done
		})
}

type insertResult struct {
	created    bool
	unresolved bool
	ambiguous  bool
	index      int
	message    string
}

// parseInsert reads the response to "break".
func (s *Session) parseInsert(text string) insertResult {
	var res insertResult
	var other []string

	it := fdb.NewLineIterator(text)
	for it.HasNext() {
		raw := it.Next()
		if strings.HasPrefix(raw, fdb.AmbiguousFilenamesNotice) {
			res.ambiguous = true
			for it.HasNext() && strings.HasPrefix(it.Peek(), "#") {
				it.Next()
			}
			continue
		}
		line := fdb.Classify(raw)
		switch line.Kind {
		case fdb.LineBreakpointCreated:
			res.created = true
			res.index = line.Index
			res.unresolved = strings.Contains(raw, "not yet resolved")
		case fdb.LineTrace, fdb.LineFault, fdb.LineSWF:
			s.printStd(line, it)
		default:
			other = append(other, raw)
		}
	}

	res.message = strings.Join(other, "\n")
	if !res.created && !res.ambiguous && res.message != "" {
		s.console.Print(res.message+"\n", OutputSystem)
	}
	return res
}

// breakpointHit runs condition and log message of a registered breakpoint
// and asks the reporter whether to stay halted. known is false for numbers
// the table does not hold.
func (s *Session) breakpointHit(index int) (suspend, known bool) {
	bp, ok := s.breakpoints.lookup(index)
	if !ok {
		return false, false
	}

	frame := s.newFrame(0, bp.Position(), "")
	sc := newSuspendContext(frame)
	s.current.Store(sc)

	if s.evaluateCondition(bp, frame) {
		msg := s.evaluateLogMessage(bp, frame)
		if msg != "" {
			s.console.Print(msg+"\n", OutputNormal)
		}
		suspend = s.reporter.BreakpointHit(bp, msg, sc) && bp.Suspend
	}

	if suspend {
		s.hitReported = true
	} else {
		s.current.Store(nil)
	}
	return suspend, true
}

// evaluateCondition reports whether bp's condition holds. A condition that
// cannot be evaluated, or is not boolean, halts the player.
func (s *Session) evaluateCondition(bp *Breakpoint, f *Frame) bool {
	cond := strings.TrimSpace(bp.Condition)
	if cond == "" {
		return true
	}
	res := f.evalNow(cond)
	if res.Err != nil || res.Failed {
		s.console.Print(fmt.Sprintf("Breakpoint condition %q failed: %s\n", cond, resultMessage(res)), OutputSystem)
		return true
	}
	switch b := strings.ToLower(strings.TrimSpace(res.Text)); b {
	case "true":
		return true
	case "false":
		return false
	}
	s.console.Print(fmt.Sprintf("Breakpoint condition %q is not boolean: %s\n", cond, res.Text), OutputSystem)
	return true
}

func (s *Session) evaluateLogMessage(bp *Breakpoint, f *Frame) string {
	expr := strings.TrimSpace(bp.LogMessage)
	if expr == "" {
		return ""
	}
	res := f.evalNow(expr)
	if res.Err != nil {
		return resultMessage(res)
	}
	return s.presentLogValue(res.Text)
}

// presentLogValue shows string results without quotes or escapes.
func (s *Session) presentLogValue(text string) string {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return value.Unescape(text[1:len(text)-1], s.settings.EscapeAll)
	}
	return text
}

func resultMessage(r value.Result) string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Text
}

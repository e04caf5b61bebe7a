package debug

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
)

// SplitFrames cuts a "bt" dump into one segment per frame. A frame starts
// at a line beginning with "#<digits>" and whitespace. The delimiter is the
// line break before the marker, "\n" or "\r\n", and belongs to no segment.
// Joining the segments with "\n" gives back the dump with every delimiter
// written as "\n"; line breaks inside a frame are kept as they were.
func SplitFrames(dump string) []string {
	var frames []string
	start := 0
	for i := 0; i < len(dump); i++ {
		if dump[i] != '\n' || !isFrameStart(dump[i+1:]) {
			continue
		}
		end := i
		if end > start && dump[end-1] == '\r' {
			end--
		}
		frames = append(frames, dump[start:end])
		start = i + 1
	}
	if start < len(dump) {
		frames = append(frames, dump[start:])
	}
	return frames
}

func isFrameStart(s string) bool {
	if len(s) < 2 || s[0] != '#' {
		return false
	}
	j := 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == 1 || j == len(s) {
		return false
	}
	switch s[j] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// frameLine is a parsed "bt" line.
type frameLine struct {
	Index int
	Scope string
	Name  string // file name as fdb prints it
	ID    string // fdb file id, may be empty
	Line  int    // 0-based, -1 when unknown
}

// parseFrame reads one frame segment such as
//
//	#0   this = [Object 1, class='Main'].Main/init() at Main.mxml#2:14
func parseFrame(text string) (frameLine, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "#") {
		return frameLine{}, false
	}
	i := 1
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	idx, err := strconv.Atoi(text[1:i])
	if err != nil {
		return frameLine{}, false
	}

	fl := frameLine{Index: idx, Line: -1}
	sig := strings.TrimSpace(text[i:])
	if at := strings.LastIndex(sig, " at "); at >= 0 {
		loc := strings.TrimSpace(sig[at+len(" at "):])
		sig = sig[:at]

		file := loc
		if c := strings.LastIndexByte(loc, ':'); c >= 0 {
			if n, err := strconv.Atoi(loc[c+1:]); err == nil {
				fl.Line = n - 1
				file = loc[:c]
			}
		}
		if h := strings.IndexByte(file, '#'); h >= 0 {
			fl.ID = file[h+1:]
			file = file[:h]
		}
		fl.Name = file
	}
	fl.Scope = scopeLabel(sig)
	return fl, true
}

// scopeLabel turns "this = [Object 1, class='Main'].pkg::Main/init(a=1)"
// into "init: pkg::Main".
func scopeLabel(sig string) string {
	end := strings.IndexByte(sig, '(')
	if end < 0 {
		end = len(sig)
	}
	head := sig[:end]

	start := 0
	if b := strings.LastIndexByte(head, ']'); b >= 0 {
		start = b + 1
		if start < len(head) && head[start] == '.' {
			start++
		}
	} else if sp := strings.IndexByte(head, ' '); sp >= 0 {
		start = sp + 1
	}

	label := strings.TrimSpace(head[start:])
	if slash := strings.LastIndexByte(label, '/'); slash > 0 {
		label = label[slash+1:] + ": " + label[:slash]
	}
	return label
}

// Frame is one stack frame of a halt. A frame is only usable until the
// player resumes.
type Frame struct {
	s           *Session
	index       int
	pos         Position
	resolved    bool
	scope       string
	placeholder string
	generation  uint64
}

// newFrame builds a frame at a known source position.
func (s *Session) newFrame(index int, pos Position, scope string) *Frame {
	return &Frame{
		s:          s,
		index:      index,
		pos:        pos,
		resolved:   true,
		scope:      scope,
		generation: s.generation.Load(),
	}
}

// resolveFrame maps a parsed frame onto a source file. A frame whose file
// cannot be found gets placeholder source at line 0.
func (s *Session) resolveFrame(fl frameLine) *Frame {
	if fl.Name != "" && fl.Line >= 0 {
		if path, ok := s.files.Resolve(s.worker, fl.Name, "", fl.ID); ok {
			return s.newFrame(fl.Index, Position{File: path, Line: fl.Line}, fl.Scope)
		}
	}
	f := s.newFrame(fl.Index, Position{File: fl.Name}, fl.Scope)
	f.resolved = false
	f.placeholder = placeholderSource(fl)
	return f
}

func placeholderSource(fl frameLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Source of %s is not available.\n", fl.Scope)
	if fl.Name != "" {
		fmt.Fprintf(&b, "// fdb reported file %s", fl.Name)
		if fl.ID != "" {
			fmt.Fprintf(&b, " (id %s)", fl.ID)
		}
		if fl.Line >= 0 {
			fmt.Fprintf(&b, " line %d", fl.Line+1)
		}
		b.WriteString(".\n")
	}
	return b.String()
}

// Index returns the frame number, 0 for the innermost frame.
func (f *Frame) Index() int { return f.index }

// Position returns the source position of the frame.
func (f *Frame) Position() Position { return f.pos }

// Resolved reports whether the frame's file was found.
func (f *Frame) Resolved() bool { return f.resolved }

// Scope returns a label such as "init: Main".
func (f *Frame) Scope() string { return f.scope }

// Source returns placeholder text for frames without a file.
func (f *Frame) Source() string { return f.placeholder }

// Stale reports whether the player resumed since the frame was built.
func (f *Frame) Stale() bool {
	return f.generation != f.s.generation.Load() || f.s.ended.Load()
}

// String returns the frame as shown in stack listings.
func (f *Frame) String() string {
	return fmt.Sprintf("#%d %s at %s", f.index, f.scope, f.pos)
}

// SuspendContext is one halt of the player: the top frame and, once the
// stack was dumped, the other frames.
type SuspendContext struct {
	top *Frame

	mu     sync.RWMutex
	frames []*Frame
}

func newSuspendContext(top *Frame) *SuspendContext {
	return &SuspendContext{top: top, frames: []*Frame{top}}
}

// TopFrame returns the innermost frame.
func (c *SuspendContext) TopFrame() *Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.top
}

// Frames returns the frames known so far, innermost first.
func (c *SuspendContext) Frames() []*Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// setFrames stores a stack dump. The dumped top frame replaces the
// initial one when its file was resolved.
func (c *SuspendContext) setFrames(frames []*Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frames[0].resolved {
		c.top = frames[0]
	}
	c.frames = append([]*Frame{c.top}, frames[1:]...)
}

// stackDump returns a "bt" command delivering the parsed frames.
func (s *Session) stackDump(done func([]*Frame)) *fdb.Command {
	return fdb.New(fdb.KindStackDump, "bt", fdb.OutputSpecial, fdb.Suspended, fdb.Suspended, func(text string) fdb.Progress {
		if text != "" && s.filterStdResponse(text) {
			return fdb.Proceed
		}
		var frames []*Frame
		for _, seg := range SplitFrames(text) {
			fl, ok := parseFrame(seg)
			if !ok {
				s.logger.Debug("skipping stack line", "line", seg)
				continue
			}
			frames = append(frames, s.resolveFrame(fl))
		}
		done(frames)
		return fdb.Done
	})
}

// locationCommand dumps the stack after a stop and reports the position.
// After a breakpoint hit it only completes the reported halt.
func (s *Session) locationCommand() *fdb.Command {
	return s.stackDump(func(frames []*Frame) {
		if len(frames) == 0 {
			return
		}
		if s.hitReported {
			if cur := s.current.Load(); cur != nil {
				cur.setFrames(frames)
			}
			return
		}
		sc := newSuspendContext(frames[0])
		sc.setFrames(frames)
		s.current.Store(sc)
		s.reporter.PositionReached(sc)
	})
}

// Frames dumps the stack of the current halt.
func (s *Session) Frames(ctx context.Context) ([]*Frame, error) {
	if s.State() != StateSuspended {
		return nil, ErrNotSuspended
	}

	type result struct {
		frames []*Frame
		err    error
	}
	ch := make(chan result, 1)
	deliver := func(r result) {
		select {
		case ch <- r:
		default:
		}
	}
	cmd := s.stackDump(func(frames []*Frame) {
		if cur := s.current.Load(); cur != nil && len(frames) > 0 {
			cur.setFrames(frames)
		}
		deliver(result{frames: frames})
	}).OnFail(func(err error) {
		deliver(result{err: err})
	})
	if err := s.enqueue(cmd); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.frames, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSessionTerminated
	}
}

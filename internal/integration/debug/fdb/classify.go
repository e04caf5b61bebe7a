package fdb

import (
	"strconv"
	"strings"
)

// Fixed texts fdb prints outside of any command's own response.
const (
	SessionTerminatedNotice  = "Player session terminated"
	WorkerChangedPrefix      = "Active worker has changed to worker "
	CodeLoadedNotice         = "Additional ActionScript code has been loaded"
	BreakpointPrefix         = "Breakpoint "
	ResolvedPrefix           = "Resolved breakpoint "
	AttemptingResolvePrefix  = "Attempting to resolve breakpoint "
	SetAdditionalNotice      = "Set additional breakpoints"
	ExecutionHaltedNotice    = "Execution halted"
	NoExecutableCodeNotice   = "no executable code"
	AmbiguousFilenamesNotice = "Ambiguous matching file names:"
	TracePrefix              = "[trace] "
	FaultPrefix              = "[Fault] "
	SWFPrefix                = "[SWF] "
	UnloadSWFPrefix          = "[UnloadSWF] "
	MainThreadWorker         = "Main Thread"
)

// LineKind is the classification of one response line.
type LineKind int

const (
	// LineText is ordinary output with no protocol meaning.
	LineText LineKind = iota
	// LineUnparsable matched a known template but its fields did not parse.
	LineUnparsable
	LineWorkerChanged
	LineCodeLoaded
	LineBreakpointCreated
	LineBreakpointHit
	LineLocation
	LineTrace
	LineFault
	LineSWF
	LineBreakpointResolved
	LineAttemptingResolve
	LineSetAdditional
	LineExecutionHalted
	LineSessionTerminated
)

// String returns a string representation of the line kind.
func (k LineKind) String() string {
	switch k {
	case LineText:
		return "text"
	case LineUnparsable:
		return "unparsable"
	case LineWorkerChanged:
		return "worker-changed"
	case LineCodeLoaded:
		return "code-loaded"
	case LineBreakpointCreated:
		return "breakpoint-created"
	case LineBreakpointHit:
		return "breakpoint-hit"
	case LineLocation:
		return "location"
	case LineTrace:
		return "trace"
	case LineFault:
		return "fault"
	case LineSWF:
		return "swf"
	case LineBreakpointResolved:
		return "breakpoint-resolved"
	case LineAttemptingResolve:
		return "attempting-resolve"
	case LineSetAdditional:
		return "set-additional"
	case LineExecutionHalted:
		return "execution-halted"
	case LineSessionTerminated:
		return "session-terminated"
	default:
		return "unknown"
	}
}

// Line is a classified response line.
type Line struct {
	Kind LineKind
	Text string

	// Index is the breakpoint index for breakpoint lines.
	Index int

	// Worker is the worker id for LineWorkerChanged; -1 is the main thread.
	Worker int
}

// Classify assigns a kind to one trimmed response line. It never fails:
// a line that starts like a template but cannot be decoded is returned as
// LineUnparsable.
func Classify(line string) Line {
	l := Line{Kind: LineText, Text: line}
	if line == "" {
		return l
	}

	switch {
	case strings.HasPrefix(line, TracePrefix):
		l.Kind = LineTrace
	case strings.HasPrefix(line, FaultPrefix):
		l.Kind = LineFault
	case strings.HasPrefix(line, SWFPrefix), strings.HasPrefix(line, UnloadSWFPrefix):
		l.Kind = LineSWF
	case strings.Contains(line, SessionTerminatedNotice):
		l.Kind = LineSessionTerminated
	case strings.HasPrefix(line, WorkerChangedPrefix):
		rest := strings.TrimSpace(strings.TrimPrefix(line, WorkerChangedPrefix))
		if rest == MainThreadWorker {
			l.Kind, l.Worker = LineWorkerChanged, -1
			break
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			l.Kind = LineUnparsable
			break
		}
		l.Kind, l.Worker = LineWorkerChanged, n
	case strings.Contains(line, CodeLoadedNotice):
		l.Kind = LineCodeLoaded
	case strings.HasPrefix(line, ResolvedPrefix):
		l.Kind, l.Index = indexed(LineBreakpointResolved, strings.TrimPrefix(line, ResolvedPrefix))
	case strings.HasPrefix(line, AttemptingResolvePrefix):
		l.Kind, l.Index = indexed(LineAttemptingResolve, strings.TrimPrefix(line, AttemptingResolvePrefix))
	case strings.Contains(line, BreakpointPrefix):
		rest := line[strings.Index(line, BreakpointPrefix)+len(BreakpointPrefix):]
		switch {
		case isCreation(rest):
			l.Kind, l.Index = indexed(LineBreakpointCreated, rest)
		case isHit(rest):
			l.Kind, l.Index = indexed(LineBreakpointHit, rest)
		}
	case line[0] >= '0' && line[0] <= '9':
		l.Kind = LineLocation
	case strings.HasPrefix(line, SetAdditionalNotice):
		l.Kind = LineSetAdditional
	case strings.HasPrefix(line, ExecutionHaltedNotice):
		l.Kind = LineExecutionHalted
	}
	return l
}

// ParseIndex reads the breakpoint number at the start of s. The number ends
// at the first comma, colon or space.
func ParseIndex(s string) (int, bool) {
	end := len(s)
	if i := strings.IndexAny(s, ",: "); i >= 0 {
		end = i
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func indexed(kind LineKind, rest string) (LineKind, int) {
	n, ok := ParseIndex(rest)
	if !ok {
		return LineUnparsable, 0
	}
	return kind, n
}

func isCreation(rest string) bool {
	i := strings.IndexAny(rest, ",: ")
	if i < 0 {
		return false
	}
	tail := rest[i:]
	return strings.HasPrefix(tail, " created") ||
		strings.HasPrefix(tail, ": file ") ||
		strings.HasPrefix(tail, " at 0x")
}

// isHit reports whether rest continues a hit notice: a comma directly
// after the index, as in "1, init() at Main.as:11". "5 not set; ..." and
// "2 deleted" are not hits.
func isHit(rest string) bool {
	i := strings.IndexAny(rest, ",: ")
	return i > 0 && rest[i] == ','
}

package debug

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// OutputKind classifies console text.
type OutputKind int

const (
	// OutputNormal is program output such as trace lines.
	OutputNormal OutputKind = iota
	// OutputSystem is debugger diagnostics and notices.
	OutputSystem
	// OutputError is fdb's stderr.
	OutputError
)

// String returns a string representation of the kind.
func (k OutputKind) String() string {
	switch k {
	case OutputNormal:
		return "normal"
	case OutputSystem:
		return "system"
	case OutputError:
		return "error"
	default:
		return "unknown"
	}
}

// Console receives text for the user. Print is called from the dispatcher
// and the stderr drain and must not block for long.
type Console interface {
	Print(text string, kind OutputKind)
}

// Reporter receives session events. Calls arrive on the dispatcher
// goroutine; a Reporter must not wait for results of session requests.
type Reporter interface {
	// BreakpointHit reports a hit on a registered breakpoint and returns
	// whether the player should stay halted. logMessage is the evaluated
	// log expression, or "".
	BreakpointHit(bp *Breakpoint, logMessage string, sc *SuspendContext) bool

	// PositionReached reports a halt that is not a breakpoint hit: a
	// finished step, a pause or a run-to-position.
	PositionReached(sc *SuspendContext)

	// SessionPaused reports that fdb announced "Execution halted".
	SessionPaused()

	// SessionDetached reports the end of the session. err is nil when the
	// session ended normally.
	SessionDetached(err error)
}

// PlayerLauncher starts the player once fdb waits for it.
type PlayerLauncher interface {
	LaunchPlayer(ctx context.Context) error
}

// Transport is the fdb subprocess' stdio.
type Transport interface {
	Stdin() io.Writer
	Stdout() io.Reader
	Stderr() io.Reader
	Close() error
}

// Scope decides which source files breakpoints may be set in.
type Scope interface {
	// Contains reports whether path belongs to the debugged project.
	Contains(path string) bool

	// HasEquivalent reports whether a file with the same qualified name as
	// path exists inside the project.
	HasEquivalent(path string) bool
}

// ProjectFiles is the part of the project file index a ProjectScope needs.
type ProjectFiles interface {
	Contains(path string) bool
	FilesByName(name string) []string
	PackageOf(path string) (string, bool)
}

// ProjectScope is a Scope backed by the project file index.
type ProjectScope struct {
	Files ProjectFiles
}

// Contains reports whether path is an indexed project file.
func (p ProjectScope) Contains(path string) bool {
	return p.Files != nil && p.Files.Contains(path)
}

// HasEquivalent reports whether a project file has the same name as path
// and lives in a package matching path's directory.
func (p ProjectScope) HasEquivalent(path string) bool {
	if p.Files == nil {
		return false
	}
	dir := filepath.ToSlash(filepath.Dir(path))
	for _, candidate := range p.Files.FilesByName(filepath.Base(path)) {
		pkg, ok := p.Files.PackageOf(candidate)
		if !ok {
			continue
		}
		if pkg == "" || strings.HasSuffix(dir, "/"+strings.ReplaceAll(pkg, ".", "/")) {
			return true
		}
	}
	return false
}

type discardConsole struct{}

func (discardConsole) Print(string, OutputKind) {}

type nopReporter struct{}

func (nopReporter) BreakpointHit(*Breakpoint, string, *SuspendContext) bool { return true }
func (nopReporter) PositionReached(*SuspendContext)                          {}
func (nopReporter) SessionPaused()                                           {}
func (nopReporter) SessionDetached(error)                                    {}

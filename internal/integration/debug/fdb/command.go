package fdb

import "strings"

// VMState is the run state of the player as seen by the dispatcher.
type VMState int

const (
	// Suspended means the player is halted and fdb accepts inspection commands.
	Suspended VMState = iota
	// Running means the player executes ActionScript.
	Running
)

// String returns a string representation of the state.
func (s VMState) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// OutputMode selects how the dispatcher reads a command's response.
type OutputMode int

const (
	// OutputNone posts the command and reads nothing.
	OutputNone OutputMode = iota
	// OutputDefault reads only output that is already buffered and scans it structurally.
	OutputDefault
	// OutputSpecial blocks for the response and hands it to the command's handler.
	OutputSpecial
)

// String returns a string representation of the mode.
func (m OutputMode) String() string {
	switch m {
	case OutputNone:
		return "none"
	case OutputDefault:
		return "default"
	case OutputSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// Progress is a handler's verdict on a response.
type Progress int

const (
	// Done ends the command.
	Done Progress = iota
	// Proceed asks the dispatcher to read another response for the same command.
	Proceed
)

// Kind is the closed set of command variants. The dispatcher switches on
// Kind for everything that differs between variants besides the handler.
type Kind int

const (
	KindRaw Kind = iota
	KindGreeting
	KindRun
	KindContinue
	KindStep
	KindSuspend
	KindSuspendResume
	KindConfirmSuspend
	KindDumpOutput
	KindStackDump
	KindEvaluate
	KindFrameInfo
	KindScopeChain
	KindFileList
	KindBreakpointInsert
	KindBreakpointDelete
	KindComposite
	KindQuit
)

var kindNames = [...]string{
	KindRaw:              "raw",
	KindGreeting:         "greeting",
	KindRun:              "run",
	KindContinue:         "continue",
	KindStep:             "step",
	KindSuspend:          "suspend",
	KindSuspendResume:    "suspend-resume",
	KindConfirmSuspend:   "confirm-suspend",
	KindDumpOutput:       "dump-output",
	KindStackDump:        "stack-dump",
	KindEvaluate:         "evaluate",
	KindFrameInfo:        "frame-info",
	KindScopeChain:       "scope-chain",
	KindFileList:         "file-list",
	KindBreakpointInsert: "breakpoint-insert",
	KindBreakpointDelete: "breakpoint-delete",
	KindComposite:        "composite",
	KindQuit:             "quit",
}

// String returns a string representation of the kind.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Handler consumes one response of an OutputSpecial command.
type Handler func(text string) Progress

// Command is one protocol request. Text, states and mode are fixed at
// construction; the text may be computed lazily at post time.
type Command struct {
	Kind   Kind
	Start  VMState
	End    VMState
	Output OutputMode

	// Inner is the command run once a suspend handshake completes.
	Inner *Command

	resume   bool
	text     string
	textFunc func() string
	handler  Handler
	fail     func(error)

	composite *composite
}

// Text returns the literal command text, one command per line.
func (c *Command) Text() string {
	if c.textFunc != nil {
		return c.textFunc()
	}
	return c.text
}

// Handle passes a response to the command's handler.
func (c *Command) Handle(text string) Progress {
	if c.handler == nil {
		return Done
	}
	return c.handler(text)
}

// OnFail sets the callback run if the command is dropped because the
// session ended before it completed.
func (c *Command) OnFail(fn func(error)) *Command {
	c.fail = fn
	return c
}

// Fail reports that the command will never run. The inner command of a
// suspend handshake fails with it.
func (c *Command) Fail(err error) {
	if c.composite != nil {
		c.composite.finish()
	}
	if c.fail != nil {
		c.fail(err)
	}
	if c.Inner != nil {
		c.Inner.Fail(err)
	}
}

// WithHandler replaces the response handler.
func (c *Command) WithHandler(h Handler) *Command {
	c.handler = h
	return c
}

// LineCount is the number of protocol lines the command text spans. Each
// line produces its own response.
func (c *Command) LineCount() int {
	return strings.Count(c.Text(), "\n") + 1
}

// String returns a short description for logs.
func (c *Command) String() string {
	if c.Inner != nil {
		return c.Kind.String() + "(" + c.Inner.String() + ")"
	}
	return c.Kind.String() + " " + strings.ReplaceAll(c.Text(), "\n", `\n`)
}

// New returns a command of any kind.
func New(kind Kind, text string, mode OutputMode, start, end VMState, h Handler) *Command {
	return &Command{Kind: kind, text: text, Output: mode, Start: start, End: end, handler: h}
}

// NewLazy returns a command whose text is computed when it is posted.
func NewLazy(kind Kind, text func() string, mode OutputMode, start, end VMState, h Handler) *Command {
	return &Command{Kind: kind, textFunc: text, Output: mode, Start: start, End: end, handler: h}
}

// Raw returns a command that suspends-to-suspended and has its output
// scanned structurally.
func Raw(text string) *Command {
	return New(KindRaw, text, OutputDefault, Suspended, Suspended, nil)
}

// Local runs h on the dispatcher in queue order without posting anything.
// h receives an empty response.
func Local(kind Kind, h Handler) *Command {
	return New(kind, "", OutputSpecial, Suspended, Suspended, h)
}

// Greeting reads fdb's banner up to the first prompt without posting anything.
func Greeting() *Command {
	return New(KindGreeting, "", OutputSpecial, Suspended, Suspended, nil)
}

// Run starts the debuggee and waits for the player to connect.
func Run(h Handler) *Command {
	return New(KindRun, "run", OutputSpecial, Suspended, Suspended, h)
}

// Continue resumes the player.
func Continue() *Command {
	return New(KindContinue, "continue", OutputNone, Suspended, Running, nil)
}

// Step sends one of next, step or finish. Its location output is read by
// later structural scanning.
func Step(text string) *Command {
	return New(KindStep, text, OutputNone, Suspended, Suspended, nil)
}

// Suspend halts the player and then runs inner.
func Suspend(inner *Command) *Command {
	c := New(KindSuspend, "suspend", OutputSpecial, Running, Suspended, nil)
	c.Inner = inner
	return c
}

// SuspendResume halts the player, runs inner, and resumes the player.
func SuspendResume(inner *Command) *Command {
	c := New(KindSuspendResume, "suspend", OutputSpecial, Running, Suspended, nil)
	c.Inner = inner
	return c
}

// ConfirmSuspend answers the halt question. resume selects whether a
// continue follows inner.
func ConfirmSuspend(inner *Command, resume bool) *Command {
	c := New(KindConfirmSuspend, "y", OutputSpecial, Suspended, Suspended, nil)
	c.Inner = inner
	c.resume = resume
	return c
}

// Resumes reports whether the confirmation is part of a suspend/resume bracket.
func (c *Command) Resumes() bool {
	return c.Kind == KindConfirmSuspend && c.resume
}

// DumpOutput drains unsolicited output while the player runs.
func DumpOutput() *Command {
	return New(KindDumpOutput, "", OutputDefault, Running, Running, nil)
}

// Quit ends the fdb session.
func Quit() *Command {
	return New(KindQuit, "quit\ny", OutputSpecial, Suspended, Suspended, nil)
}

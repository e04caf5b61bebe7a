// Package hook runs a user Lua script alongside a debug session.
//
// The script may define any of these global functions:
//
//	-- Called on every breakpoint hit. Returning false resumes the player
//	-- instead of stopping; nil or true keeps the default.
//	function on_breakpoint(file, line, id, log_message, scope) end
//
//	-- Called for console output. Returning false drops the text, a string
//	-- replaces it.
//	function on_output(kind, text) end
//
//	-- Called when the session ends; err is nil on a normal end.
//	function on_detach(err) end
//
// Lines are 1-based. print writes to the session log. Scripts run in a
// sandbox without io, os, debug or package.
package hook

import (
	"errors"
	"io"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/fdbridge/internal/integration/debug"
)

// Hook function names.
const (
	FuncBreakpoint = "on_breakpoint"
	FuncOutput     = "on_output"
	FuncDetach     = "on_detach"
)

// Hooks is a loaded hook script.
type Hooks struct {
	state  *State
	logger *slog.Logger

	breakpoint bool
	output     bool
	detach     bool
}

// Option configures Load.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	timeout time.Duration
}

// WithLogger sets the logger receiving hook errors and print output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTimeout bounds each hook call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Load runs the script at path and records which hooks it defines.
func Load(path string, opts ...Option) (*Hooks, error) {
	return load(func(s *State) error { return s.DoFile(path) }, opts)
}

// LoadString is Load for a script held in memory.
func LoadString(code string, opts ...Option) (*Hooks, error) {
	return load(func(s *State) error { return s.DoString(code) }, opts)
}

func load(run func(*State) error, opts []Option) (*Hooks, error) {
	o := options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.With("component", "hook")
	state := newState(o.timeout, func(text string) {
		logger.Info("hook print", "text", text)
	})
	if err := run(state); err != nil {
		_ = state.Close()
		return nil, err
	}

	return &Hooks{
		state:      state,
		logger:     logger,
		breakpoint: state.HasFunction(FuncBreakpoint),
		output:     state.HasFunction(FuncOutput),
		detach:     state.HasFunction(FuncDetach),
	}, nil
}

// Close releases the Lua state.
func (h *Hooks) Close() error {
	return h.state.Close()
}

// Breakpoint calls on_breakpoint and reports whether the player should
// stay halted. It returns true when the hook is missing or fails.
func (h *Hooks) Breakpoint(bp *debug.Breakpoint, logMessage string, sc *debug.SuspendContext) bool {
	if !h.breakpoint {
		return true
	}
	scope := ""
	if sc != nil && sc.TopFrame() != nil {
		scope = sc.TopFrame().Scope()
	}
	ret, err := h.state.Call(FuncBreakpoint,
		lua.LString(bp.Path), lua.LNumber(bp.Line+1), lua.LNumber(bp.ID),
		lua.LString(logMessage), lua.LString(scope))
	if err != nil {
		h.logger.Warn("hook failed", "hook", FuncBreakpoint, "error", err)
		return true
	}
	return len(ret) == 0 || ret[0] != lua.LFalse
}

// Output calls on_output and returns the text to print and whether to
// print it at all.
func (h *Hooks) Output(text string, kind debug.OutputKind) (string, bool) {
	if !h.output {
		return text, true
	}
	ret, err := h.state.Call(FuncOutput, lua.LString(kind.String()), lua.LString(text))
	if err != nil {
		h.logger.Warn("hook failed", "hook", FuncOutput, "error", err)
		return text, true
	}
	if len(ret) == 0 {
		return text, true
	}
	switch v := ret[0].(type) {
	case lua.LBool:
		return text, bool(v)
	case lua.LString:
		return string(v), true
	default:
		return text, true
	}
}

// Detach calls on_detach.
func (h *Hooks) Detach(err error) {
	if !h.detach {
		return
	}
	arg := lua.LValue(lua.LNil)
	if err != nil {
		arg = lua.LString(err.Error())
	}
	if _, cerr := h.state.Call(FuncDetach, arg); cerr != nil && !errors.Is(cerr, ErrStateClosed) {
		h.logger.Warn("hook failed", "hook", FuncDetach, "error", cerr)
	}
}

// Reporter wraps r so on_breakpoint can veto a stop and on_detach sees the
// end of the session.
func (h *Hooks) Reporter(r debug.Reporter) debug.Reporter {
	return &reporter{Reporter: r, hooks: h}
}

// Console wraps c so on_output can filter or rewrite text.
func (h *Hooks) Console(c debug.Console) debug.Console {
	return &console{inner: c, hooks: h}
}

type reporter struct {
	debug.Reporter
	hooks *Hooks
}

func (r *reporter) BreakpointHit(bp *debug.Breakpoint, logMessage string, sc *debug.SuspendContext) bool {
	if !r.hooks.Breakpoint(bp, logMessage, sc) {
		return false
	}
	return r.Reporter.BreakpointHit(bp, logMessage, sc)
}

func (r *reporter) SessionDetached(err error) {
	r.hooks.Detach(err)
	r.Reporter.SessionDetached(err)
}

type console struct {
	inner debug.Console
	hooks *Hooks
}

func (c *console) Print(text string, kind debug.OutputKind) {
	if text, ok := c.hooks.Output(text, kind); ok {
		c.inner.Print(text, kind)
	}
}

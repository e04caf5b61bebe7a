package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/dshills/fdbridge/internal/integration/debug"
	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

const (
	prompt      = "(fdbridge) "
	historyFile = ".fdbridge_history"
)

var (
	errQuit       = errors.New("quit")
	errNotRunning = errors.New("player is not running")
)

// Term reads debugger commands from the terminal and runs them against
// the session.
type Term struct {
	app   *app
	line  *liner.State
	cmds  []command
	frame int
	last  string
}

type command struct {
	aliases []string
	usage   string
	help    string
	fn      func(t *Term, ctx context.Context, args string) error

	// repeat marks commands an empty line runs again.
	repeat bool
}

func newTerm(a *app) *Term {
	t := &Term{app: a}
	t.cmds = debugCommands()
	return t
}

func debugCommands() []command {
	return []command{
		{aliases: []string{"break", "b"}, usage: "break FILE:LINE [if COND]", help: "Set a breakpoint.", fn: (*Term).breakpoint},
		{aliases: []string{"trace"}, usage: "trace FILE:LINE EXPR", help: "Print EXPR whenever LINE runs, without stopping.", fn: (*Term).tracepoint},
		{aliases: []string{"toggle", "tb"}, usage: "toggle FILE:LINE", help: "Set a breakpoint, or delete the one on LINE.", fn: (*Term).toggleBreakpoint},
		{aliases: []string{"condition", "cond"}, usage: "condition ID [COND]", help: "Set or clear the condition of a breakpoint.", fn: (*Term).condition},
		{aliases: []string{"log"}, usage: "log ID [EXPR]", help: "Set or clear the expression a breakpoint prints.", fn: (*Term).logMessage},
		{aliases: []string{"delete", "d"}, usage: "delete [ID]", help: "Delete a breakpoint, or all of them.", fn: (*Term).deleteBreakpoint},
		{aliases: []string{"breakpoints", "bp"}, usage: "breakpoints", help: "List breakpoints and what fdb made of them.", fn: (*Term).listBreakpoints},
		{aliases: []string{"continue", "c"}, usage: "continue", help: "Resume the player.", fn: (*Term).resume, repeat: true},
		{aliases: []string{"next", "n"}, usage: "next", help: "Step over the current line.", fn: (*Term).next, repeat: true},
		{aliases: []string{"step", "s"}, usage: "step", help: "Step into the current line.", fn: (*Term).step, repeat: true},
		{aliases: []string{"finish", "f"}, usage: "finish", help: "Run until the current function returns.", fn: (*Term).finish, repeat: true},
		{aliases: []string{"until", "u"}, usage: "until FILE:LINE", help: "Run to a line.", fn: (*Term).until},
		{aliases: []string{"pause"}, usage: "pause", help: "Halt the running player.", fn: (*Term).pause},
		{aliases: []string{"bt", "where"}, usage: "bt", help: "Print the call stack.", fn: (*Term).backtrace},
		{aliases: []string{"frame", "fr"}, usage: "frame N", help: "Select a stack frame.", fn: (*Term).selectFrame},
		{aliases: []string{"print", "p"}, usage: "print EXPR", help: "Evaluate an expression.", fn: (*Term).print},
		{aliases: []string{"locals", "l"}, usage: "locals", help: "List this, arguments and locals of the frame.", fn: (*Term).locals},
		{aliases: []string{"set"}, usage: "set EXPR = VALUE", help: "Assign a variable.", fn: (*Term).set},
		{aliases: []string{"help", "h"}, usage: "help", help: "Show this list.", fn: (*Term).help},
		{aliases: []string{"quit", "q", "exit"}, usage: "quit", help: "End the session.", fn: (*Term).quit},
	}
}

// find returns the command with the given alias.
func (t *Term) find(name string) (command, bool) {
	for _, c := range t.cmds {
		for _, a := range c.aliases {
			if a == name {
				return c, true
			}
		}
	}
	return command{}, false
}

// Run prompts for commands until quit, end of input or the end of the
// session.
func (t *Term) Run(ctx context.Context) error {
	t.line = liner.NewLiner()
	defer t.line.Close()
	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.complete)

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = t.line.ReadHistory(f)
		f.Close()
	}
	defer t.saveHistory(histPath)

	t.app.out.Infof("Type 'help' for list of commands.")
	for {
		select {
		case <-t.app.session.Done():
			return nil
		default:
		}

		input, err := t.line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				if t.app.session.State() == debug.StateRunning {
					_ = t.pause(ctx, "")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			input = t.last
			if input == "" {
				continue
			}
		} else {
			t.line.AppendHistory(input)
		}

		name, args := parseCommand(input)
		cmd, ok := t.find(name)
		if !ok {
			t.app.out.Errorf("Unknown command %q. Type 'help' for list of commands.", name)
			continue
		}
		t.last = ""
		if cmd.repeat {
			t.last = input
		}
		if err := cmd.fn(t, ctx, args); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			t.app.out.Errorf("Command failed: %v", err)
		}
	}
}

func (t *Term) saveHistory(path string) {
	f, err := os.Create(path)
	if err != nil {
		t.app.logger.Debug("cannot write history", "file", path, "error", err)
		return
	}
	defer f.Close()
	if _, err := t.line.WriteHistory(f); err != nil {
		t.app.logger.Debug("cannot write history", "file", path, "error", err)
	}
}

func historyPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, historyFile)
	}
	return historyFile
}

func (t *Term) complete(line string) []string {
	var out []string
	for _, c := range t.cmds {
		for _, a := range c.aliases {
			if strings.HasPrefix(a, line) {
				out = append(out, a)
			}
		}
	}
	return out
}

// parseCommand splits input into the command name and the rest.
func parseCommand(input string) (string, string) {
	input = strings.TrimSpace(input)
	name, args, _ := strings.Cut(input, " ")
	return name, strings.TrimSpace(args)
}

// parseLocation parses "FILE:LINE" with a 1-based line and returns the
// 0-based line.
func parseLocation(s string) (string, int, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", 0, fmt.Errorf("location %q: want FILE:LINE", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("location %q: bad line number", s)
	}
	return s[:i], line - 1, nil
}

// parseBreak parses "FILE:LINE [if COND]".
func parseBreak(args string) (file string, line int, cond string, err error) {
	loc, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	file, line, err = parseLocation(loc)
	if err != nil {
		return "", 0, "", err
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return file, line, "", nil
	}
	kw, c, _ := strings.Cut(rest, " ")
	if kw != "if" || strings.TrimSpace(c) == "" {
		return "", 0, "", fmt.Errorf("unexpected %q after location", rest)
	}
	return file, line, strings.TrimSpace(c), nil
}

// parseAssignment splits "EXPR = VALUE" at the first single "=".
func parseAssignment(args string) (string, string, error) {
	for i := 0; i < len(args); i++ {
		if args[i] != '=' {
			continue
		}
		if i+1 < len(args) && args[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.ContainsRune("!<>=", rune(args[i-1])) {
			continue
		}
		lhs, rhs := strings.TrimSpace(args[:i]), strings.TrimSpace(args[i+1:])
		if lhs == "" || rhs == "" {
			break
		}
		return lhs, rhs, nil
	}
	return "", "", fmt.Errorf("want EXPR = VALUE")
}

// sourcePath resolves a file argument: an existing path is made absolute,
// a bare name is looked up in the source index.
func (t *Term) sourcePath(file string) (string, error) {
	if index := t.app.index; index != nil && !strings.ContainsAny(file, `/\`) {
		switch matches := index.FilesByName(file); len(matches) {
		case 0:
		case 1:
			return matches[0], nil
		default:
			return "", fmt.Errorf("%s is ambiguous: %s", file, strings.Join(matches, ", "))
		}
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func (t *Term) breakpoint(_ context.Context, args string) error {
	file, line, cond, err := parseBreak(args)
	if err != nil {
		return err
	}
	path, err := t.sourcePath(file)
	if err != nil {
		return err
	}
	if existing, ok := t.app.store.At(path, line); ok {
		return fmt.Errorf("breakpoint %d is already at %s", existing.ID, existing.Position())
	}
	var bp *debug.Breakpoint
	if cond != "" {
		bp = t.app.store.AddConditional(path, line, cond)
	} else {
		bp = t.app.store.Add(path, line)
	}
	if err := t.app.session.RegisterBreakpoint(bp); err != nil {
		return err
	}
	t.app.out.Infof("Breakpoint %d at %s", bp.ID, bp.Position())
	return nil
}

func (t *Term) tracepoint(_ context.Context, args string) error {
	loc, expr, _ := strings.Cut(strings.TrimSpace(args), " ")
	file, line, err := parseLocation(loc)
	if err != nil {
		return err
	}
	if expr = strings.TrimSpace(expr); expr == "" {
		return fmt.Errorf("want trace FILE:LINE EXPR")
	}
	path, err := t.sourcePath(file)
	if err != nil {
		return err
	}
	if existing, ok := t.app.store.At(path, line); ok {
		return fmt.Errorf("breakpoint %d is already at %s", existing.ID, existing.Position())
	}
	bp := t.app.store.AddLogPoint(path, line, expr)
	if err := t.app.session.RegisterBreakpoint(bp); err != nil {
		return err
	}
	t.app.out.Infof("Tracepoint %d at %s", bp.ID, bp.Position())
	return nil
}

func (t *Term) toggleBreakpoint(_ context.Context, args string) error {
	file, line, err := parseLocation(args)
	if err != nil {
		return err
	}
	path, err := t.sourcePath(file)
	if err != nil {
		return err
	}
	bp, added := t.app.store.Toggle(path, line)
	if !added {
		if err := t.unregister(bp); err != nil {
			return err
		}
		t.app.out.Infof("Deleted breakpoint %d", bp.ID)
		return nil
	}
	if err := t.app.session.RegisterBreakpoint(bp); err != nil {
		return err
	}
	t.app.out.Infof("Breakpoint %d at %s", bp.ID, bp.Position())
	return nil
}

// parseEdit parses "ID [TEXT]".
func parseEdit(args string) (int, string, error) {
	idText, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	id, err := strconv.Atoi(idText)
	if err != nil {
		return 0, "", fmt.Errorf("bad breakpoint id %q", idText)
	}
	return id, strings.TrimSpace(rest), nil
}

func (t *Term) condition(_ context.Context, args string) error {
	id, cond, err := parseEdit(args)
	if err != nil {
		return err
	}
	old, updated, err := t.app.store.SetCondition(id, cond)
	if err != nil {
		return err
	}
	if err := t.replace(old, updated); err != nil {
		return err
	}
	if cond == "" {
		t.app.out.Infof("Breakpoint %d is now unconditional", id)
	} else {
		t.app.out.Infof("Breakpoint %d stops if %s", id, cond)
	}
	return nil
}

func (t *Term) logMessage(_ context.Context, args string) error {
	id, expr, err := parseEdit(args)
	if err != nil {
		return err
	}
	old, updated, err := t.app.store.SetLogMessage(id, expr)
	if err != nil {
		return err
	}
	if err := t.replace(old, updated); err != nil {
		return err
	}
	if expr == "" {
		t.app.out.Infof("Breakpoint %d prints nothing", id)
	} else {
		t.app.out.Infof("Breakpoint %d prints %s", id, expr)
	}
	return nil
}

// replace swaps a breakpoint in the session for its edited copy.
func (t *Term) replace(old, updated *debug.Breakpoint) error {
	if err := t.unregister(old); err != nil {
		return err
	}
	return t.app.session.RegisterBreakpoint(updated)
}

func (t *Term) unregister(bp *debug.Breakpoint) error {
	if err := t.app.session.UnregisterBreakpoint(bp); err != nil && !errors.Is(err, debug.ErrBreakpointNotFound) {
		return err
	}
	return nil
}

func (t *Term) deleteBreakpoint(_ context.Context, args string) error {
	if args == "" {
		removed := t.app.store.ClearAll()
		for _, bp := range removed {
			if err := t.unregister(bp); err != nil {
				return err
			}
		}
		t.app.out.Infof("Deleted %d breakpoints", len(removed))
		return nil
	}
	id, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("bad breakpoint id %q", args)
	}
	bp, err := t.app.store.Remove(id)
	if err != nil {
		return err
	}
	if err := t.unregister(bp); err != nil {
		return err
	}
	t.app.out.Infof("Deleted breakpoint %d", id)
	return nil
}

func (t *Term) listBreakpoints(_ context.Context, _ string) error {
	infos := t.app.session.Breakpoints()
	if len(infos) == 0 {
		t.app.out.Printf("No breakpoints.\n")
		return nil
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Breakpoint.ID < infos[j].Breakpoint.ID })
	for _, info := range infos {
		bp := info.Breakpoint
		t.app.out.Printf("%d\t%s\t%s", bp.ID, bp.Position(), info.Status)
		switch {
		case bp.LogMessage != "":
			t.app.out.Printf("\ttrace %s", bp.LogMessage)
		case bp.Condition != "":
			t.app.out.Printf("\tif %s", bp.Condition)
		}
		if info.Message != "" {
			t.app.out.Printf("\t(%s)", info.Message)
		}
		t.app.out.Printf("\n")
	}
	return nil
}

// run issues a command that resumes the player and waits for the next
// halt or the end of the session.
func (t *Term) run(ctx context.Context, issue func() error) error {
	halted := t.app.reporter.Halted()
	if err := issue(); err != nil {
		return err
	}
	t.frame = 0
	select {
	case <-halted:
	case <-t.app.session.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (t *Term) resume(ctx context.Context, _ string) error {
	return t.run(ctx, t.app.session.Resume)
}

func (t *Term) next(ctx context.Context, _ string) error {
	return t.run(ctx, t.app.session.StepOver)
}

func (t *Term) step(ctx context.Context, _ string) error {
	return t.run(ctx, t.app.session.StepInto)
}

func (t *Term) finish(ctx context.Context, _ string) error {
	return t.run(ctx, t.app.session.StepOut)
}

func (t *Term) until(ctx context.Context, args string) error {
	file, line, err := parseLocation(args)
	if err != nil {
		return err
	}
	path, err := t.sourcePath(file)
	if err != nil {
		return err
	}
	return t.run(ctx, func() error {
		return t.app.session.RunToPosition(debug.Position{File: path, Line: line})
	})
}

func (t *Term) pause(ctx context.Context, _ string) error {
	if t.app.session.State() != debug.StateRunning {
		return errNotRunning
	}
	return t.run(ctx, t.app.session.Pause)
}

func (t *Term) backtrace(ctx context.Context, _ string) error {
	frames, err := t.app.session.Frames(ctx)
	if err != nil {
		return err
	}
	for _, f := range frames {
		marker := "  "
		if f.Index() == t.frame {
			marker = "> "
		}
		t.app.out.Printf("%s%s\n", marker, f)
		if !f.Resolved() && f.Source() != "" {
			t.app.out.Printf("    %s\n", f.Source())
		}
	}
	return nil
}

func (t *Term) selectFrame(ctx context.Context, args string) error {
	n, err := strconv.Atoi(args)
	if err != nil || n < 0 {
		return fmt.Errorf("bad frame number %q", args)
	}
	frames, err := t.app.session.Frames(ctx)
	if err != nil {
		return err
	}
	if n >= len(frames) {
		return fmt.Errorf("no frame %d", n)
	}
	t.frame = n
	t.app.out.Highlightf("%s", frames[n])
	return nil
}

// currentFrame returns the selected frame of the current halt.
func (t *Term) currentFrame(ctx context.Context) (*debug.Frame, error) {
	if t.app.session.State() != debug.StateSuspended {
		return nil, debug.ErrNotSuspended
	}
	if t.frame == 0 {
		if f := t.app.session.TopFrame(); f != nil {
			return f, nil
		}
		return nil, debug.ErrNotSuspended
	}
	frames, err := t.app.session.Frames(ctx)
	if err != nil {
		return nil, err
	}
	if t.frame >= len(frames) {
		t.frame = 0
		return frames[0], nil
	}
	return frames[t.frame], nil
}

func (t *Term) print(ctx context.Context, args string) error {
	if args == "" {
		return fmt.Errorf("want print EXPR")
	}
	f, err := t.currentFrame(ctx)
	if err != nil {
		return err
	}
	v, err := f.Evaluate(ctx, args)
	if err != nil {
		return err
	}
	t.app.out.Printf("%s = %s\n", args, presentValue(v))
	return nil
}

func (t *Term) set(ctx context.Context, args string) error {
	lhs, rhs, err := parseAssignment(args)
	if err != nil {
		return err
	}
	f, err := t.currentFrame(ctx)
	if err != nil {
		return err
	}
	v, err := f.Evaluate(ctx, lhs+" = "+rhs)
	if err != nil {
		return err
	}
	if v.Failed() {
		return errors.New(v.Result)
	}
	t.app.out.Printf("%s = %s\n", lhs, presentValue(v))
	return nil
}

func (t *Term) locals(ctx context.Context, _ string) error {
	f, err := t.currentFrame(ctx)
	if err != nil {
		return err
	}
	children, err := f.Children(ctx)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		t.app.out.Printf("No locals.\n")
		return nil
	}
	for _, c := range children {
		if c.Value == nil {
			t.app.out.Printf("%s\n", c.Name)
			continue
		}
		t.app.out.Printf("%s = %s\n", c.Name, presentValue(c.Value))
	}
	return nil
}

func (t *Term) help(_ context.Context, _ string) error {
	t.app.out.Printf("The following commands are available:\n")
	for _, c := range t.cmds {
		t.app.out.Printf("    %-28s %s\n", c.usage, c.help)
	}
	return nil
}

func (t *Term) quit(ctx context.Context, _ string) error {
	if err := t.app.session.Quit(ctx); err != nil {
		return err
	}
	return errQuit
}

// textNode keeps the first presentation of a value. Later refinements
// such as collection sizes are not waited for.
type textNode struct {
	p   value.Presentation
	set bool
}

func (n *textNode) SetPresentation(p value.Presentation) {
	if !n.set {
		n.p, n.set = p, true
	}
}

func (n *textNode) Obsolete() bool { return n.set }

// presentValue renders v on one line.
func presentValue(v *value.Value) string {
	n := &textNode{}
	v.Present(n)
	if !n.set {
		return v.Result
	}
	if n.p.Type != "" && n.p.Text != "" && !strings.HasPrefix(n.p.Text, n.p.Type) {
		return n.p.Text + " (" + n.p.Type + ")"
	}
	return n.p.Text
}

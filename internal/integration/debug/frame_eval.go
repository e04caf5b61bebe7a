package debug

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

// couldNotEvaluate is part of fdb's reply to an expression it cannot evaluate.
const couldNotEvaluate = "could not be evaluated"

// Evaluate evaluates expr in the frame and waits for the result. A value
// fdb could not evaluate is returned with Failed set.
func (f *Frame) Evaluate(ctx context.Context, expr string) (*value.Value, error) {
	ch := make(chan value.Result, 1)
	f.context().Evaluate(value.Request{
		Expression: expr,
		Done: func(r value.Result) {
			select {
			case ch <- r:
			default:
			}
		},
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return value.New(f.context(), expr, expr, r.Text, "", value.KindOther), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.s.done:
		return nil, ErrSessionTerminated
	}
}

// Children lists this, the arguments, the locals and closure scopes of
// the frame.
func (f *Frame) Children(ctx context.Context) ([]value.Child, error) {
	c := &childCollector{ctx: ctx, done: make(chan struct{})}
	f.ComputeChildren(c)

	select {
	case <-c.done:
		return c.items(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.s.done:
		return nil, ErrSessionTerminated
	}
}

// ComputeChildren delivers the frame's variables to c in batches.
func (f *Frame) ComputeChildren(c value.Container) {
	vc := f.context()
	subs := []*fdb.Command{
		f.variablesCommand("print this", true, value.KindThis, c),
		f.variablesCommand("info arguments", false, value.KindParameter, c),
		f.variablesCommand("info locals", false, value.KindVariable, c),
	}
	if f.resolved {
		subs = append(subs, fdb.Local(fdb.KindScopeChain, func(string) fdb.Progress {
			var items []value.Child
			for _, e := range f.scopeChain().closures() {
				items = append(items, value.Child{
					Name:  e.Name,
					Value: value.New(vc, e.Name, e.Path, e.Result, "", value.KindScopeChainEntry),
				})
			}
			if len(items) > 0 {
				c.AddChildren(value.List{Items: items}, false)
			}
			return fdb.Done
		}))
	}

	cmd := fdb.Composite(subs, func() bool {
		return c.Obsolete() || f.Stale()
	}, func(int) {
		c.AddChildren(value.List{}, true)
	})
	_ = f.s.enqueue(cmd)
}

// variablesCommand lists one group of variables. With hasFrame the frame
// is selected first and its response skipped.
func (f *Frame) variablesCommand(text string, hasFrame bool, kind value.Kind, c value.Container) *fdb.Command {
	offset := 0
	if hasFrame {
		text = f.withFrame(text)
		offset = 1
	}
	current := 0
	vc := f.context()
	return fdb.New(fdb.KindFrameInfo, text, fdb.OutputSpecial, fdb.Suspended, fdb.Suspended, func(resp string) fdb.Progress {
		if current < offset {
			current++
			return fdb.Proceed
		}
		c.AddChildren(value.List{Items: parseVariables(vc, resp, kind)}, false)
		return fdb.Done
	})
}

// withFrame prefixes text with a frame selection.
func (f *Frame) withFrame(text string) string {
	sel := "frame"
	if f.index != 0 {
		sel += " " + strconv.Itoa(f.index)
	}
	return sel + "\n" + text
}

// evaluateCommand prints expr in the frame. An assignment is sent as
// "set" followed by a print of the target.
func (f *Frame) evaluateCommand(expr string, raw, fallback bool, done func(value.Result)) *fdb.Command {
	text := "print " + expr
	if lhs, rhs, ok := splitAssignment(expr); ok {
		text = "set " + lhs + " = " + rhs + "\nprint " + lhs
	}

	text = f.withFrame(text)
	lines := strings.Count(text, "\n") + 1
	responses := 0
	return fdb.New(fdb.KindEvaluate, text, fdb.OutputSpecial, fdb.Suspended, fdb.Suspended, func(resp string) fdb.Progress {
		if resp != "" && f.s.filterStdResponse(resp) {
			return fdb.Proceed
		}
		// Only the last line's response holds the value.
		responses++
		if responses < lines {
			return fdb.Proceed
		}

		failed := strings.Contains(resp, couldNotEvaluate)
		switch {
		case raw:
			done(value.Result{Text: resp, Failed: failed})
		case failed && fallback && f.resolved:
			done(f.fallback(expr))
		case failed:
			done(value.Result{Text: value.CannotEvaluatePrefix + expr, Failed: true})
		default:
			done(value.Result{Text: value.StripResultPrefix(resp)})
		}
		return fdb.Done
	})
}

// evalNow evaluates expr synchronously on the dispatcher, without fallback.
func (f *Frame) evalNow(expr string) value.Result {
	var res value.Result
	got := false
	cmd := f.evaluateCommand(expr, false, false, func(r value.Result) {
		res, got = r, true
	})
	if err := f.s.execNow(cmd); err != nil {
		return value.Result{Err: err}
	}
	if !got {
		return value.Result{Text: value.CannotEvaluatePrefix + expr, Failed: true}
	}
	return res
}

// fallback retries an expression fdb could not evaluate: first through a
// type named in the scope chain, then in every closure scope.
func (f *Frame) fallback(expr string) value.Result {
	chain := f.scopeChain()

	typeName, rest := expr, ""
	if dot := strings.IndexByte(expr, '.'); dot >= 0 {
		typeName, rest = expr[:dot], expr[dot:]
	}
	global := typeName == "global"
	resolved, found := chain.resolveType(typeName)

	if found || global {
		key := resolved
		if !global {
			key += "$"
		}
		if id, ok := chain.ids[key]; ok {
			if norm, ok := value.NormalizeID(id); ok {
				id = norm
			}
			return f.evalNow("#" + id + rest)
		}
	} else {
		for _, e := range chain.closures() {
			if r := f.evalNow(e.Path + "." + expr); r.Err == nil && !r.Failed {
				return r
			}
		}
	}
	return value.Result{Text: value.CannotEvaluatePrefix + expr, Failed: true}
}

// splitAssignment splits "a = b" at its single top-level "=". Comparison
// operators and text inside quotes or brackets are skipped.
func splitAssignment(expr string) (lhs, rhs string, ok bool) {
	pos := -1
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '=' && depth == 0:
			if i+1 < len(expr) && expr[i+1] == '=' {
				for i+1 < len(expr) && expr[i+1] == '=' {
					i++
				}
				continue
			}
			if i > 0 && strings.IndexByte("=!<>+-*/%&|^", expr[i-1]) >= 0 {
				continue
			}
			if pos >= 0 {
				return "", "", false
			}
			pos = i
		}
	}
	if pos < 0 {
		return "", "", false
	}
	lhs = strings.TrimSpace(expr[:pos])
	rhs = strings.TrimSpace(expr[pos+1:])
	return lhs, rhs, lhs != "" && rhs != ""
}

// parseVariables reads "name = value" entries. Values may span lines;
// a line without " = " continues the previous value.
func parseVariables(vc value.Context, text string, kind value.Kind) []value.Child {
	var out []value.Child
	var name string
	var val strings.Builder
	have := false

	flush := func() {
		if !have {
			return
		}
		result := strings.TrimRight(val.String(), "\r\n")
		out = append(out, value.Child{Name: name, Value: value.New(vc, name, name, result, "", kind)})
	}

	for _, tok := range tokenizeLines(text) {
		if tok[0] == '\r' || tok[0] == '\n' {
			if have {
				val.WriteString(tok)
			}
			continue
		}
		i := strings.Index(tok, value.Delim)
		if i < 0 {
			if have {
				val.WriteString(tok)
			}
			continue
		}
		flush()
		name = tok[:i]
		if isResultName(name) {
			name = "this"
		}
		val.Reset()
		val.WriteString(tok[i+len(value.Delim):])
		have = true
	}
	flush()
	return out
}

// tokenizeLines splits s into line texts and single '\r' or '\n' tokens.
func tokenizeLines(s string) []string {
	var toks []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '\r' && s[i] != '\n' {
			continue
		}
		if i > start {
			toks = append(toks, s[start:i])
		}
		toks = append(toks, s[i:i+1])
		start = i + 1
	}
	if start < len(s) {
		toks = append(toks, s[start:])
	}
	return toks
}

// isResultName reports whether name is a result variable such as "$1".
func isResultName(name string) bool {
	if len(name) < 2 || name[0] != '$' {
		return false
	}
	for i := 1; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return false
		}
	}
	return true
}

// frameContext is the value.Context of a frame.
type frameContext struct {
	f *Frame
}

func (f *Frame) context() value.Context {
	return frameContext{f: f}
}

// Evaluate queues req as a one-command composite so a request whose
// owner became obsolete never reaches fdb.
func (c frameContext) Evaluate(req value.Request) {
	f := c.f
	done := req.Done
	if done == nil {
		done = func(value.Result) {}
	}

	eval := f.evaluateCommand(req.Expression, req.Raw, true, done).OnFail(func(err error) {
		done(value.Result{Err: err})
	})
	cmd := fdb.Composite([]*fdb.Command{eval}, func() bool {
		return f.Stale() || (req.Obsolete != nil && req.Obsolete())
	}, func(ran int) {
		if ran > 0 {
			return
		}
		switch {
		case f.s.ended.Load():
			done(value.Result{Err: ErrSessionTerminated})
		case f.Stale():
			done(value.Result{Err: ErrFrameStale})
		default:
			done(value.Result{Err: value.ErrObsolete})
		}
	})

	if req.Delay > 0 {
		time.AfterFunc(req.Delay, func() {
			_ = f.s.enqueue(cmd)
		})
		return
	}
	_ = f.s.enqueue(cmd)
}

func (c frameContext) Settings() value.Settings {
	return c.f.s.settings
}

func (c frameContext) Classes() value.ClassResolver {
	return c.f.s.classes
}

// childCollector gathers frame children for a blocking caller.
type childCollector struct {
	ctx  context.Context
	done chan struct{}

	mu   sync.Mutex
	list []value.Child
	once sync.Once
}

func (c *childCollector) AddChildren(list value.List, last bool) {
	c.mu.Lock()
	c.list = append(c.list, list.Items...)
	c.mu.Unlock()
	if last {
		c.once.Do(func() { close(c.done) })
	}
}

func (c *childCollector) Obsolete() bool {
	return c.ctx.Err() != nil
}

func (c *childCollector) items() []value.Child {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]value.Child, len(c.list))
	copy(out, c.list)
	return out
}

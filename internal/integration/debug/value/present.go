package value

import (
	"strings"
	"unicode/utf8"
)

// Presentation is what a node shows for a value.
type Presentation struct {
	// Type is the class as fdb printed it, namespace separators kept.
	Type string

	Text string

	HasChildren bool

	// Full is set when Text is truncated or multi-line.
	Full *FullValue
}

// FullValue produces the untruncated text of a value on demand.
type FullValue struct {
	// Monospaced is set for markup text.
	Monospaced bool

	eval func(done func(text string, err error))
}

// Evaluate computes the full text and passes it to done.
func (f *FullValue) Evaluate(done func(text string, err error)) {
	if f == nil || f.eval == nil {
		done("", nil)
		return
	}
	f.eval(done)
}

func staticFullValue(text string, mono bool) *FullValue {
	return &FullValue{
		Monospaced: mono,
		eval: func(done func(string, error)) {
			done(text, nil)
		},
	}
}

// Node receives presentations. Later calls replace earlier ones.
type Node interface {
	SetPresentation(p Presentation)
	Obsolete() bool
}

// Present computes the presentation of v and passes it to node. Collection
// sizes and markup text arrive later as follow-up presentations.
func (v *Value) Present(node Node) {
	text := v.Result
	var raw, info string

	isObject := v.IsObject()
	if isObject {
		raw, info = TypeOf(v.Result)
		if raw != "" {
			if id, ok := v.ObjectID(); ok {
				text = "[" + id + "]"
			}
		}
	}

	var followUp func()
	if (raw == xmlType || raw == xmlListType) && !strings.Contains(v.Expression, "=") {
		if v.settings().LegacyXML {
			if raw == xmlListType {
				v.presentXMLList(node, text)
				return
			}
			if info != "" {
				v.presentXML(node, info)
				return
			}
		} else {
			// the default presentation stays until toXMLString arrives
			followUp = func() { v.scheduleToXMLString(node, raw) }
		}
	}

	if typ := NormalizeType(raw); typ != "" && isCollection(typ) {
		if typ == vectorType || strings.HasPrefix(typ, genericVectorPrefix) {
			followUp = chain(followUp, func() { v.scheduleVector(node, raw) })
		} else {
			followUp = chain(followUp, func() { v.scheduleSize(node, raw, "") })
		}
	}

	text, full := fullValueIfNeeded(text, v.settings().MaxLength, false)
	node.SetPresentation(Presentation{Type: raw, Text: text, HasChildren: isObject, Full: full})

	if followUp != nil {
		followUp()
	}
}

func chain(a, b func()) func() {
	if a == nil {
		return b
	}
	return func() { a(); b() }
}

func (v *Value) scheduleVector(node Node, typ string) {
	if v.ctx == nil {
		return
	}
	v.ctx.Evaluate(Request{
		Expression: v.Expression + ".fixed",
		Delay:      v.settings().PendingDelay,
		Obsolete:   node.Obsolete,
		Done: func(r Result) {
			if r.Err != nil || node.Obsolete() {
				return
			}
			prefix := ""
			if r.Text == "true" || r.Text == "false" {
				prefix = "fixed = " + r.Text
			}
			node.SetPresentation(Presentation{Type: typ, Text: prefix, HasChildren: true})
			v.scheduleSize(node, typ, prefix)
		},
	})
}

func (v *Value) scheduleSize(node Node, typ, prefix string) {
	if v.ctx == nil {
		return
	}
	v.ctx.Evaluate(Request{
		Expression: v.Expression + ".length",
		Delay:      v.settings().PendingDelay,
		Obsolete:   node.Obsolete,
		Done: func(r Result) {
			if r.Err != nil || node.Obsolete() {
				return
			}
			// 3 (0x3)
			i := strings.Index(r.Text, " (0x")
			if i < 0 {
				return
			}
			text := "size = " + r.Text[:i]
			if prefix != "" {
				text = prefix + ", " + text
			}
			node.SetPresentation(Presentation{Type: typ, Text: text, HasChildren: true})
		},
	})
}

// Modify assigns newExpr to the value's expression. done receives the
// evaluation result.
func (v *Value) Modify(newExpr string, done func(Result)) {
	if v.ctx == nil {
		if done != nil {
			done(Result{Err: ErrNoContext})
		}
		return
	}
	v.ctx.Evaluate(Request{
		Expression: v.Expression + "=" + newExpr,
		Done: func(r Result) {
			if done != nil {
				done(r)
			}
		},
	})
}

// cut shortens text to at most max bytes without splitting a UTF-8
// sequence.
func cut(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

// fullValueIfNeeded truncates text longer than max and attaches a full
// value for long or multi-line text. A trailing line break alone does not
// count as multi-line.
func fullValueIfNeeded(text string, max int, mono bool) (string, *FullValue) {
	if max <= 0 {
		max = DefaultSettings().MaxLength
	}
	n := len(text)
	lf := strings.IndexByte(text, '\n')
	cr := strings.IndexByte(text, '\r')
	if n <= max && (lf < 0 || lf == n-1) && (cr < 0 || cr == n-1) {
		return text, nil
	}

	quoted := n >= 2 && text[0] == '\'' && text[n-1] == '\''
	doubleQuoted := n >= 2 && text[0] == '"' && text[n-1] == '"'

	shown := text
	if n > max {
		ending := " "
		switch {
		case doubleQuoted:
			ending = `" `
		case quoted:
			ending = "' "
		}
		shown = cut(text, max) + ending
	}
	shown = strings.TrimSpace(shown)

	full := text
	if quoted || doubleQuoted {
		full = text[1 : n-1]
	}
	return shown, staticFullValue(convertLineSeparators(full), mono)
}

func convertLineSeparators(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// FullValue evaluates the expression again and passes the untruncated,
// unquoted text to done.
func (v *Value) FullValue(done func(text string, err error)) {
	if v.ctx == nil {
		done("", ErrNoContext)
		return
	}
	v.ctx.Evaluate(Request{
		Expression: v.Expression,
		Done: func(r Result) {
			if r.Err != nil {
				done("", r.Err)
				return
			}
			text := r.Text
			if n := len(text); n >= 2 && (text[0] == '"' && text[n-1] == '"' || text[0] == '\'' && text[n-1] == '\'') {
				text = text[1 : n-1]
			}
			done(convertLineSeparators(Unescape(text, v.settings().EscapeAll)), nil)
		},
	})
}

package debug

import (
	"strings"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

// scopeChain is the parsed output of "info scopechain": qualified names
// in chain order with their object ids.
type scopeChain struct {
	order []string
	ids   map[string]string
}

// scopeEntry is a closure scope shown among a frame's children.
type scopeEntry struct {
	Name   string
	Path   string
	Result string
}

func newScopeChain() *scopeChain {
	return &scopeChain{ids: make(map[string]string)}
}

// parseScopeChain reads lines such as
//
//	0 = [Object 4302, class='flash.display::Sprite']
func parseScopeChain(text string) *scopeChain {
	c := newScopeChain()
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' }) {
		l := strings.IndexByte(line, '[')
		r := strings.LastIndexByte(line, ']')
		if l < 0 || r < l {
			continue
		}
		inner := line[l+1 : r]

		sp := strings.IndexByte(inner, ' ')
		comma := strings.IndexByte(inner, ',')
		if sp < 0 || comma < sp {
			continue
		}
		q1 := strings.IndexByte(inner, '\'')
		q2 := strings.LastIndexByte(inner, '\'')
		if q1 < 0 || q2 <= q1 {
			continue
		}
		c.put(strings.ReplaceAll(inner[q1+1:q2], "::", "."), inner[sp+1:comma])
	}
	return c
}

func (c *scopeChain) put(qname, id string) {
	if _, ok := c.ids[qname]; !ok {
		c.order = append(c.order, qname)
	}
	c.ids[qname] = id
}

// closures returns the closure scopes of the chain followed by the first
// plain scope after them. A chain without closures yields nothing.
func (c *scopeChain) closures() []scopeEntry {
	var out []scopeEntry
	firstAfter := ""
	for _, token := range c.order {
		slash := strings.IndexByte(token, '/')
		if slash >= 0 || strings.Contains(token, "<anonymous>") {
			out = append(out, c.entry(token, token[slash+1:]))
		} else if firstAfter == "" && len(out) > 0 {
			firstAfter = token
		}
	}
	if firstAfter != "" {
		out = append(out, c.entry(firstAfter, firstAfter))
	}
	return out
}

func (c *scopeChain) entry(token, fun string) scopeEntry {
	id := c.ids[token]
	path := id
	if norm, ok := value.NormalizeID(id); ok {
		path = norm
	}
	return scopeEntry{
		Name:   "Locals of " + fun,
		Path:   "#" + path,
		Result: "[Object " + id + value.ClassMarker + token + "']",
	}
}

// resolveType finds the qualified class name for a simple or qualified
// type name among the class objects ("Name$") of the chain.
func (c *scopeChain) resolveType(name string) (string, bool) {
	for _, qname := range c.order {
		base, ok := strings.CutSuffix(qname, "$")
		if !ok {
			continue
		}
		if base == name || strings.HasSuffix(base, "."+name) {
			return base, true
		}
	}
	return name, false
}

// scopeChain returns the chain of the frame, cached for the current halt.
// It runs on the dispatcher.
func (f *Frame) scopeChain() *scopeChain {
	s := f.s
	key := f.pos.File + "#" + f.scope
	gen := s.generation.Load()
	if s.chain != nil && s.chainKey == key && s.chainGen == gen {
		return s.chain
	}

	chain := newScopeChain()
	cmd := fdb.New(fdb.KindScopeChain, "info scopechain", fdb.OutputSpecial, fdb.Suspended, fdb.Suspended,
		func(text string) fdb.Progress {
			chain = parseScopeChain(text)
			return fdb.Done
		})
	if err := s.execNow(cmd); err != nil {
		s.logger.Debug("scope chain unavailable", "error", err)
	}
	s.chain, s.chainKey, s.chainGen = chain, key, gen
	return chain
}

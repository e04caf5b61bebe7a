package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

func TestSplitAssignment(t *testing.T) {
	tests := []struct {
		in       string
		lhs, rhs string
		ok       bool
	}{
		{"a = 1", "a", "1", true},
		{"obj.name = \"x = y\"", "obj.name", "\"x = y\"", true},
		{"list[i == 2 ? 0 : 1] = 3", "list[i == 2 ? 0 : 1]", "3", true},
		{"a == b", "", "", false},
		{"a != b", "", "", false},
		{"a <= b", "", "", false},
		{"a += 1", "", "", false},
		{"a === b", "", "", false},
		{"a = b = c", "", "", false},
		{"f(x = 1)", "", "", false},
		{"= 1", "", "", false},
		{"a =", "", "", false},
		{"'it''s = ok'", "", "", false},
	}
	for _, tt := range tests {
		lhs, rhs, ok := splitAssignment(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.lhs, lhs, tt.in)
			assert.Equal(t, tt.rhs, rhs, tt.in)
		}
	}
}

func TestParseVariables(t *testing.T) {
	text := "$1 = [Object 100, class='Main']\ncount = 5\nnote = \"first\nsecond\"\nempty = "

	children := parseVariables(nil, text, value.KindVariable)

	var names []string
	for _, c := range children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"this", "count", "note", "empty"}, names)
	assert.Equal(t, "[Object 100, class='Main']", children[0].Value.Result)
	assert.Equal(t, "5", children[1].Value.Result)
	assert.Equal(t, "\"first\nsecond\"", children[2].Value.Result)
	assert.Equal(t, "", children[3].Value.Result)
	assert.Equal(t, value.KindVariable, children[1].Value.Kind)
}

func TestParseVariablesEmpty(t *testing.T) {
	assert.Empty(t, parseVariables(nil, "", value.KindParameter))
	assert.Empty(t, parseVariables(nil, "No locals.", value.KindVariable))
}

func TestTokenizeLines(t *testing.T) {
	assert.Equal(t, []string{"a", "\r", "\n", "b", "\n"}, tokenizeLines("a\r\nb\n"))
	assert.Empty(t, tokenizeLines(""))
}

func TestIsResultName(t *testing.T) {
	assert.True(t, isResultName("$1"))
	assert.True(t, isResultName("$42"))
	assert.False(t, isResultName("$"))
	assert.False(t, isResultName("$x"))
	assert.False(t, isResultName("count"))
}

func TestWithFrame(t *testing.T) {
	s := &Session{}
	assert.Equal(t, "frame\nprint x", s.newFrame(0, Position{}, "").withFrame("print x"))
	assert.Equal(t, "frame 3\nprint x", s.newFrame(3, Position{}, "").withFrame("print x"))
}

func TestPresentLogValue(t *testing.T) {
	s := &Session{}
	assert.Equal(t, "Alice", s.presentLogValue(`"Alice"`))
	assert.Equal(t, "5", s.presentLogValue("5"))

	s.settings.EscapeAll = true
	assert.Equal(t, "a\tb", s.presentLogValue(`"a\tb"`))
}

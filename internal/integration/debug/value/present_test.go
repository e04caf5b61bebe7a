package value

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresentPrimitive(t *testing.T) {
	ctx := newFakeContext()
	v := New(ctx, "n", "n", "42 (0x2a)", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	require.Len(t, node.got, 1)
	assert.Equal(t, "42 (0x2a)", node.last().Text)
	assert.False(t, node.last().HasChildren)
	assert.Nil(t, node.last().Full)
	assert.Empty(t, ctx.requests)
}

func TestPresentObject(t *testing.T) {
	ctx := newFakeContext()
	v := New(ctx, "o", "o", "[Object 12345, class='pack::Foo']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	require.Len(t, node.got, 1)
	assert.Equal(t, "[12345]", node.last().Text)
	assert.Equal(t, "pack::Foo", node.last().Type)
	assert.True(t, node.last().HasChildren)
}

func TestPresentVector(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["v.fixed"] = Result{Text: "true"}
	ctx.results["v.length"] = Result{Text: "3 (0x3)"}
	v := New(ctx, "v", "v", "[Object 7, class='__AS3__.vec::Vector.<String>']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	assert.Equal(t, []string{"v.fixed", "v.length"}, ctx.expressions())
	assert.Equal(t, "fixed = true, size = 3", node.last().Text)
	assert.Equal(t, ctx.settings.PendingDelay, ctx.requests[0].Delay)
}

func TestPresentVectorWithoutFixed(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["v.fixed"] = Result{Text: "undefined"}
	ctx.results["v.length"] = Result{Text: "0 (0x0)"}
	v := New(ctx, "v", "v", "[Object 7, class='__AS3__.vec::Vector.<int>']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	assert.Equal(t, "size = 0", node.last().Text)
}

func TestPresentCollectionSize(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["a.length"] = Result{Text: "2 (0x2)"}
	v := New(ctx, "a", "a", "[Object 9, class='Array']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	assert.Equal(t, []string{"a.length"}, ctx.expressions())
	assert.Equal(t, "[9]", node.got[0].Text)
	assert.Equal(t, "size = 2", node.last().Text)
}

func TestPresentObsoleteNodeSkipsFollowUp(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["a.length"] = Result{Text: "2 (0x2)"}
	v := New(ctx, "a", "a", "[Object 9, class='Array']", "", KindVariable)

	node := &recordingNode{obsolete: true}
	v.Present(node)

	require.Len(t, node.got, 1)
	assert.Equal(t, "[9]", node.last().Text)
}

func TestPresentXMLString(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["x.toXMLString()"] = Result{Text: "<a>\n  <b/>\n</a>"}
	v := New(ctx, "x", "x", "[Object 5, class='XML@1 element <a>']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	require.Len(t, node.got, 2)
	assert.Equal(t, "[5]", node.got[0].Text)
	assert.Equal(t, ctx.settings.XMLDelay, ctx.requests[0].Delay)

	p := node.last()
	require.NotNil(t, p.Full)
	assert.True(t, p.Full.Monospaced)
	p.Full.Evaluate(func(text string, err error) {
		require.NoError(t, err)
		assert.Equal(t, "<a>\n  <b/>\n</a>", text)
	})
}

func TestPresentLegacyXMLElement(t *testing.T) {
	ctx := newFakeContext()
	ctx.settings.LegacyXML = true
	v := New(ctx, "x", "x", `[Object 5, class='XML@1 element <root attr="v">']`, "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	require.Len(t, node.got, 1)
	assert.Equal(t, `<root attr="v">...</root> `, node.last().Text)
	assert.NotNil(t, node.last().Full)
	assert.Empty(t, ctx.requests)
}

func TestPresentLegacyXMLText(t *testing.T) {
	ctx := newFakeContext()
	ctx.settings.LegacyXML = true
	v := New(ctx, "x", "x", "[Object 5, class='XML@1 text element content']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)

	assert.Equal(t, "element content", node.last().Text)
}

func TestLegacyXMLReconstruction(t *testing.T) {
	ctx := newFakeContext()
	ctx.settings.LegacyXML = true
	ctx.results["#5."] = Result{Text: "$1 = [Object 5, class='XML@1 element <root>']\n" +
		"0 = [Object 6, class='XML@2 element <child/>']\n" +
		"1 = [Object 7, class='XML@3 text hello']"}
	v := New(ctx, "x", "x", "[Object 5, class='XML@1 element <root>']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)
	full := node.last().Full
	require.NotNil(t, full)

	var got string
	full.Evaluate(func(text string, err error) {
		require.NoError(t, err)
		got = text
	})
	assert.Equal(t, "<root>\n  <child/>\n  hello\n</root>", got)
}

func TestLegacyXMLReconstructionCancelled(t *testing.T) {
	ctx := newFakeContext()
	ctx.settings.LegacyXML = true
	v := New(ctx, "x", "x", "[Object 5, class='XMLList@1']", "", KindVariable)

	node := &recordingNode{}
	v.Present(node)
	node.obsolete = true

	var gotErr error
	node.last().Full.Evaluate(func(_ string, err error) { gotErr = err })
	assert.ErrorIs(t, gotErr, ErrObsolete)
	assert.Empty(t, ctx.requests)
}

func TestFullValueIfNeeded(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		text, full := fullValueIfNeeded("'abc'", 10, false)
		assert.Equal(t, "'abc'", text)
		assert.Nil(t, full)
	})

	t.Run("trailing newline", func(t *testing.T) {
		_, full := fullValueIfNeeded("abc\n", 10, false)
		assert.Nil(t, full)
	})

	t.Run("multi-line quoted", func(t *testing.T) {
		text, full := fullValueIfNeeded("\"a\r\nb\"", 10, false)
		assert.Equal(t, "\"a\r\nb\"", text)
		require.NotNil(t, full)
		full.Evaluate(func(s string, err error) {
			assert.Equal(t, "a\nb", s)
		})
	})

	t.Run("truncated keeps quote", func(t *testing.T) {
		long := "'" + strings.Repeat("x", 20) + "'"
		text, full := fullValueIfNeeded(long, 5, false)
		assert.Equal(t, "'xxxx'", text)
		require.NotNil(t, full)
		full.Evaluate(func(s string, err error) {
			assert.Equal(t, strings.Repeat("x", 20), s)
		})
	})
}

func TestFullValueIfNeededMultiByte(t *testing.T) {
	long := "\"" + strings.Repeat("é", 600) + "\""
	text, full := fullValueIfNeeded(long, 1000, false)
	require.NotNil(t, full)
	assert.True(t, utf8.ValidString(text), text)
	assert.True(t, strings.HasPrefix(text, "\""+strings.Repeat("é", 499)))
	assert.False(t, strings.HasPrefix(text, "\""+strings.Repeat("é", 500)))
}

func TestCut(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"éé", 3, "é"},
		{"éé", 2, "é"},
		{"日本", 2, ""},
		{"a日本", 4, "a日"},
	}
	for _, tt := range tests {
		got := cut(tt.in, tt.max)
		assert.Equal(t, tt.want, got, "%q/%d", tt.in, tt.max)
		assert.True(t, utf8.ValidString(got))
	}
}

func TestModify(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["a.b=5"] = Result{Text: "5 (0x5)"}
	v := New(ctx, "b", "a.b", "1 (0x1)", "", KindField)

	var got Result
	v.Modify("5", func(r Result) { got = r })
	assert.Equal(t, "5 (0x5)", got.Text)

	orphan := New(nil, "b", "a.b", "1", "", KindField)
	orphan.Modify("5", func(r Result) { got = r })
	assert.ErrorIs(t, got.Err, ErrNoContext)
}

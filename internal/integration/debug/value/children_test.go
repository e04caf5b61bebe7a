package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batch struct {
	list List
	last bool
}

type recordingContainer struct {
	batches  []batch
	obsolete bool
}

func (c *recordingContainer) AddChildren(list List, last bool) {
	c.batches = append(c.batches, batch{list, last})
}

func (c *recordingContainer) Obsolete() bool { return c.obsolete }

// names flattens all items, descending into groups.
func (c *recordingContainer) names() []string {
	var out []string
	var walk func(List)
	walk = func(l List) {
		for _, g := range l.Groups {
			for _, sub := range g.Lists {
				walk(sub)
			}
		}
		for _, it := range l.Items {
			out = append(out, it.Name)
		}
	}
	for _, b := range c.batches {
		walk(b.list)
	}
	return out
}

type mapResolver map[string]*ClassDecl

func (m mapResolver) ResolveClass(qname string) (*ClassDecl, bool) {
	d, ok := m[qname]
	return d, ok
}

func TestComputeChildrenWithoutClassInfo(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["#10."] = Result{Text: "$1 = [Object 10, class='Foo']\n" +
		"b = 2 (0x2)\n" +
		"a = \"s\"\n" +
		"setter = [Setter 62]\n" +
		"garbage line\n"}
	v := New(ctx, "o", "o", "[Object 10, class='Foo']", "", KindVariable)

	c := &recordingContainer{}
	v.Children(c)

	require.NotEmpty(t, c.batches)
	assert.True(t, c.batches[len(c.batches)-1].last)
	assert.Equal(t, []string{"b", "a"}, c.names())
	require.True(t, ctx.requests[0].Raw)
}

func TestComputeChildrenPaths(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["#10."] = Result{Text: "$1 = [Object 10, class='Array']\n" +
		"length = 2 (0x2)\n" +
		"1 = \"b\"\n" +
		"0 = \"a\"\n"}
	v := New(ctx, "arr", "this.arr", "[Object 10, class='Array']", "", KindField)

	c := &recordingContainer{}
	v.Children(c)

	last := c.batches[len(c.batches)-1]
	require.True(t, last.last)
	require.Len(t, last.list.Items, 2)
	assert.Equal(t, "0", last.list.Items[0].Name)
	assert.Equal(t, `this.arr["0"]`, last.list.Items[0].Value.Expression)
	assert.Equal(t, "1", last.list.Items[1].Name)
	assert.Equal(t, KindField, last.list.Items[0].Value.Kind)
}

func TestComputeChildrenStaticFunctionParameters(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["#3."] = Result{Text: "$1 = [Object 3, class='Main$/staticFunction']\n" +
		"p = 1 (0x1)\n"}
	v := New(ctx, "f", "f", "[Object 3, class='Main$/staticFunction']", "", KindScopeChainEntry)

	c := &recordingContainer{}
	v.Children(c)

	require.Equal(t, []string{"p"}, c.names())
	for _, b := range c.batches {
		for _, it := range b.list.Items {
			assert.Equal(t, KindParameter, it.Value.Kind)
		}
	}
}

func TestComputeChildrenCollapsesBackingFields(t *testing.T) {
	ctx := newFakeContext()
	ctx.results["#1."] = Result{Text: "$1 = [Object 1, class='Foo']\n" +
		"_size = 3 (0x3)\n" +
		"size = 3 (0x3)\n" +
		"name = \"x\"\n" +
		"_name = \"y\"\n" +
		"_id = 1 (0x1)\n" +
		"id = 1 (0x1)\n"}
	v := New(ctx, "o", "o", "[Object 1, class='Foo']", "", KindVariable)

	c := &recordingContainer{}
	v.Children(c)

	assert.Equal(t, []string{"size", "name", "_name", "id"}, c.names())
}

func TestComputeChildrenNotObject(t *testing.T) {
	v := New(newFakeContext(), "n", "n", "1 (0x1)", "", KindVariable)
	c := &recordingContainer{}
	v.Children(c)
	require.Len(t, c.batches, 1)
	assert.True(t, c.batches[0].last)
	assert.Zero(t, c.batches[0].list.Len())
}

func TestComputeChildrenGroups(t *testing.T) {
	ctx := newFakeContext()
	ctx.classes = mapResolver{
		"pack.Child": {
			QualifiedName: "pack.Child",
			Super:         "pack.Base",
			Members: []Member{
				{Name: "own"},
				{Name: "prop", Property: true},
				{Name: "COUNT", Static: true},
			},
		},
		"pack.Base": {
			QualifiedName: "pack.Base",
			Members: []Member{
				{Name: "baseField"},
				{Name: "DEFAULT", Static: true},
			},
		},
	}
	ctx.results["#4."] = Result{Text: "$1 = [Object 4, class='pack::Child']\n" +
		"COUNT = 1 (0x1)\n" +
		"DEFAULT = 2 (0x2)\n" +
		"baseField = 3 (0x3)\n" +
		"own = 4 (0x4)\n" +
		"prop = 5 (0x5)\n" +
		"mystery = 6 (0x6)\n"}
	v := New(ctx, "c", "c", "[Object 4, class='pack::Child']", "", KindVariable)

	c := &recordingContainer{}
	v.Children(c)

	require.Len(t, c.batches, 5)

	inherited := c.batches[0].list
	require.Len(t, inherited.Groups, 1)
	assert.Equal(t, GroupInherited, inherited.Groups[0].Name)
	lists := inherited.Groups[0].Lists
	require.Len(t, lists, 3)
	require.Len(t, lists[0].Groups, 1)
	assert.Equal(t, GroupStatic, lists[0].Groups[0].Name)
	assert.Equal(t, "DEFAULT", lists[0].Groups[0].Lists[0].Items[0].Name)
	// unknown names of a sealed class count as inherited fields
	assert.Equal(t, []string{"baseField", "mystery"}, itemNames(lists[1]))

	statics := c.batches[1].list
	require.Len(t, statics.Groups, 1)
	assert.Equal(t, GroupStatic, statics.Groups[0].Name)
	assert.Equal(t, "COUNT", statics.Groups[0].Lists[0].Items[0].Name)
	assert.Equal(t, MemberStaticField, statics.Groups[0].Lists[0].Items[0].Value.Member)

	assert.Equal(t, []string{"own"}, itemNames(c.batches[2].list))
	assert.Equal(t, []string{"prop"}, itemNames(c.batches[3].list))
	assert.True(t, c.batches[4].last)
}

func TestComputeChildrenDynamicClass(t *testing.T) {
	ctx := newFakeContext()
	ctx.classes = mapResolver{
		"Dyn": {QualifiedName: "Dyn", Dynamic: true, Members: []Member{{Name: "a"}}},
	}
	ctx.results["#4."] = Result{Text: "$1 = [Object 4, class='Dyn']\n" +
		"a = 1 (0x1)\n" +
		"extra = 2 (0x2)\n"}
	v := New(ctx, "d", "d", "[Object 4, class='Dyn']", "", KindVariable)

	c := &recordingContainer{}
	v.Children(c)

	assert.Zero(t, c.batches[0].list.Len())
	assert.Equal(t, []string{"a", "extra"}, itemNames(c.batches[1].list))
}

func TestComputeChildrenStaticClassLookup(t *testing.T) {
	ctx := newFakeContext()
	ctx.classes = mapResolver{
		"Main": {QualifiedName: "Main", Members: []Member{{Name: "S", Static: true}}},
	}
	ctx.results["#8."] = Result{Text: "$1 = [Object 8, class='Main$']\n" +
		"S = 1 (0x1)\n"}
	v := New(ctx, "m", "m", "[Object 8, class='Main$']", "", KindScopeChainEntry)

	c := &recordingContainer{}
	v.Children(c)

	require.Len(t, c.batches[1].list.Groups, 1)
	assert.Equal(t, GroupStatic, c.batches[1].list.Groups[0].Name)
}

func TestComputeChildrenCollectionWithDirectContent(t *testing.T) {
	ctx := newFakeContext()
	ctx.classes = mapResolver{
		"Array": {QualifiedName: "Array", Dynamic: true, Members: []Member{{Name: "length", Property: true}}},
	}
	ctx.results["#2."] = Result{Text: "$1 = [Object 2, class='Array']\n" +
		"10 = \"k\"\n" +
		"length = 11 (0xb)\n" +
		"2 = \"c\"\n"}
	v := New(ctx, "a", "a", "[Object 2, class='Array']", "", KindVariable)

	c := &recordingContainer{}
	v.Children(c)

	require.Len(t, c.batches, 2)
	require.Len(t, c.batches[0].list.Groups, 1)
	assert.Equal(t, GroupFieldsProp, c.batches[0].list.Groups[0].Name)
	assert.Equal(t, []string{"2", "10"}, itemNames(c.batches[1].list))
	assert.True(t, c.batches[1].last)
}

func TestComputeChildrenEvaluationFailure(t *testing.T) {
	v := New(newFakeContext(), "o", "o", "[Object 99, class='Foo']", "", KindVariable)
	c := &recordingContainer{}
	v.Children(c)
	require.Len(t, c.batches, 1)
	assert.True(t, c.batches[0].last)
}

func TestSortElements(t *testing.T) {
	vals := []*Value{{Name: "10"}, {Name: "b"}, {Name: "2"}, {Name: "A"}}
	sortElements(vals)
	var got []string
	for _, v := range vals {
		got = append(got, v.Name)
	}
	assert.Equal(t, []string{"2", "10", "A", "b"}, got)
}

func itemNames(l List) []string {
	var out []string
	for _, it := range l.Items {
		out = append(out, it.Name)
	}
	return out
}

package value

import (
	"sort"
	"strconv"
	"strings"
)

// Group names used when members are classified.
const (
	GroupStatic     = "Static members"
	GroupInherited  = "Inherited members"
	GroupFieldsProp = "Fields and properties"
)

var collectionsWithDirectContent = []string{
	"Array",
	vectorType,
	"mx.collections.ListCollectionView",
	"mx.collections.ArrayCollection",
	"mx.collections.XMLListCollection",
}

var collectionClasses = append(append([]string{}, collectionsWithDirectContent...),
	"mx.collections.ArrayList",
	"mx.collections.AsyncListView",
)

// Child is a named entry of a list.
type Child struct {
	Name  string
	Value *Value
}

// Group is a collapsible entry holding further lists.
type Group struct {
	Name  string
	Lists []List
}

// List is one batch of children: groups first, then values.
type List struct {
	Groups []*Group
	Items  []Child
}

// Len returns the number of groups and items.
func (l List) Len() int {
	return len(l.Groups) + len(l.Items)
}

// Container receives children in batches. last marks the final batch.
type Container interface {
	AddChildren(list List, last bool)
	Obsolete() bool
}

// Children evaluates the object reference and delivers the parsed
// members to c. Non-object values have no children.
func (v *Value) Children(c Container) {
	ref, ok := v.Reference()
	if !ok || v.ctx == nil {
		c.AddChildren(List{}, true)
		return
	}

	raw := v.RawType()
	v.ctx.Evaluate(Request{
		Expression: ref,
		Raw:        true,
		Obsolete:   c.Obsolete,
		Done: func(r Result) {
			if r.Err != nil || r.Failed {
				c.AddChildren(List{}, true)
				return
			}
			members := v.parseMembers(r.Text, raw)
			addChildren(c, members, lookupClassInfo(v.ctx.Classes(), raw))
		},
	})
}

// parseMembers reads "name = value" lines of an object dump. The first line
// repeats the object itself and is skipped.
func (v *Value) parseMembers(dump, raw string) *orderedValues {
	members := newOrderedValues()

	lines := strings.Split(strings.ReplaceAll(dump, "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	kind := KindField
	if strings.Contains(raw, "/") {
		// static functions on the scope chain: [Object 52571545, class='Main$/staticFunction']
		kind = KindParameter
	}

	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		i := strings.Index(line, Delim)
		if i < 0 {
			continue
		}
		name := line[:i]
		result := line[i+len(Delim):]
		if strings.HasPrefix(result, "[Setter ") {
			continue
		}
		child := New(v.ctx, name, ChildPath(v.Expression, name), result, v.Result, kind)
		members.putCheckingDuplicates(child)
	}
	return members
}

// orderedValues keeps insertion order with removal.
type orderedValues struct {
	order  []string
	byName map[string]*Value
}

func newOrderedValues() *orderedValues {
	return &orderedValues{byName: make(map[string]*Value)}
}

// putCheckingDuplicates collapses a backing field and its property when
// both hold the same result, keeping the name without underscore.
func (o *orderedValues) putCheckingDuplicates(v *Value) {
	name := v.Name
	if existing, ok := o.byName["_"+name]; ok && existing.Result == v.Result {
		o.remove("_" + name)
	} else if len(name) > 1 && name[0] == '_' {
		if existing, ok := o.byName[name[1:]]; ok && existing.Result == v.Result {
			return
		}
	}
	o.put(v)
}

func (o *orderedValues) put(v *Value) {
	if _, ok := o.byName[v.Name]; !ok {
		o.order = append(o.order, v.Name)
	}
	o.byName[v.Name] = v
}

func (o *orderedValues) remove(name string) {
	if _, ok := o.byName[name]; !ok {
		return
	}
	delete(o.byName, name)
	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *orderedValues) each(fn func(*Value)) {
	for _, n := range o.order {
		fn(o.byName[n])
	}
}

func addChildren(c Container, members *orderedValues, info *classInfo) {
	var (
		elements                               []*Value
		ownStaticFields, ownStaticProperties   List
		ownFields, ownProperties               List
		inhStaticFields, inhStaticProperties   List
		inheritedFields, inheritedProperties   List
	)

	members.each(func(v *Value) {
		if isInteger(v.Name) {
			elements = append(elements, v)
			return
		}
		if info == nil {
			ownFields.Items = append(ownFields.Items, Child{v.Name, v})
			return
		}

		if kind, ok := info.own[v.Name]; ok {
			v.Member = kind
			switch kind {
			case MemberStaticField:
				ownStaticFields.Items = append(ownStaticFields.Items, Child{v.Name, v})
			case MemberStaticProperty:
				ownStaticProperties.Items = append(ownStaticProperties.Items, Child{v.Name, v})
			case MemberProperty:
				ownProperties.Items = append(ownProperties.Items, Child{v.Name, v})
			default:
				ownFields.Items = append(ownFields.Items, Child{v.Name, v})
			}
			return
		}
		if kind, ok := info.inherited[v.Name]; ok {
			v.Member = kind
			switch kind {
			case MemberStaticField:
				inhStaticFields.Items = append(inhStaticFields.Items, Child{v.Name, v})
			case MemberStaticProperty:
				inhStaticProperties.Items = append(inhStaticProperties.Items, Child{v.Name, v})
			case MemberProperty:
				inheritedProperties.Items = append(inheritedProperties.Items, Child{v.Name, v})
			default:
				inheritedFields.Items = append(inheritedFields.Items, Child{v.Name, v})
			}
			return
		}

		if info.dynamic {
			ownFields.Items = append(ownFields.Items, Child{v.Name, v})
		} else {
			inheritedFields.Items = append(inheritedFields.Items, Child{v.Name, v})
		}
	})

	sortElements(elements)

	var inherited List
	if inhStaticFields.Len()+inhStaticProperties.Len()+inheritedFields.Len()+inheritedProperties.Len() > 0 {
		if inhStaticFields.Len()+inhStaticProperties.Len() > 0 {
			statics := wrap(GroupStatic, inhStaticFields, inhStaticProperties)
			inherited = wrap(GroupInherited, statics, inheritedFields, inheritedProperties)
		} else {
			inherited = wrap(GroupInherited, inheritedFields, inheritedProperties)
		}
	}

	if info != nil && isCollectionWithDirectContent(info.fqn) {
		c.AddChildren(wrap(GroupFieldsProp, inherited, ownStaticFields, ownStaticProperties, ownFields, ownProperties), false)
	} else {
		c.AddChildren(inherited, false)
		if ownStaticFields.Len()+ownStaticProperties.Len() > 0 {
			c.AddChildren(wrap(GroupStatic, ownStaticFields, ownStaticProperties), false)
		}
		c.AddChildren(ownFields, false)
		c.AddChildren(ownProperties, false)
	}

	var tail List
	for _, v := range elements {
		tail.Items = append(tail.Items, Child{v.Name, v})
	}
	c.AddChildren(tail, true)
}

func wrap(name string, lists ...List) List {
	return List{Groups: []*Group{{Name: name, Lists: lists}}}
}

// sortElements orders collection elements numerically, falling back to
// case-insensitive name order.
func sortElements(values []*Value) {
	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i].Name, values[j].Name
		if a != "" && b != "" && isDigit(a[0]) && isDigit(b[0]) {
			x, errA := strconv.Atoi(a)
			y, errB := strconv.Atoi(b)
			if errA == nil && errB == nil {
				return x < y
			}
		}
		return strings.ToLower(a) < strings.ToLower(b)
	})
}

func isInteger(s string) bool {
	_, err := strconv.ParseInt(s, 10, 32)
	return err == nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isCollectionWithDirectContent(fqn string) bool {
	for _, c := range collectionsWithDirectContent {
		if c == fqn {
			return true
		}
	}
	return false
}

func isCollection(typ string) bool {
	if strings.HasPrefix(typ, genericVectorPrefix) {
		return true
	}
	for _, c := range collectionClasses {
		if c == typ {
			return true
		}
	}
	return false
}

package value

import "strings"

// MemberKind is how a class declares a member.
type MemberKind int

const (
	MemberUnknown MemberKind = iota
	MemberStaticField
	MemberStaticProperty
	MemberField
	MemberProperty
)

// Member is a field or accessor declared by a class.
type Member struct {
	Name string

	// Static is set for class-level members.
	Static bool

	// Property is set for getter/setter-backed members.
	Property bool
}

func (m Member) kind() MemberKind {
	switch {
	case m.Static && m.Property:
		return MemberStaticProperty
	case m.Static:
		return MemberStaticField
	case m.Property:
		return MemberProperty
	default:
		return MemberField
	}
}

// ClassDecl is what a declaration lookup knows about a class.
type ClassDecl struct {
	QualifiedName string
	Super         string
	Dynamic       bool
	Members       []Member
}

// ClassResolver finds class declarations by qualified name.
type ClassResolver interface {
	ResolveClass(qname string) (*ClassDecl, bool)
}

// classInfo buckets member names of a class and its superclasses.
type classInfo struct {
	fqn       string
	dynamic   bool
	own       map[string]MemberKind
	inherited map[string]MemberKind
}

// maxSuperDepth bounds the superclass walk.
const maxSuperDepth = 64

// lookupClassInfo resolves the declaring class for a raw fdb type and walks
// its superclass chain once. A trailing "$" (static context) is tried with
// and without the suffix.
func lookupClassInfo(r ClassResolver, raw string) *classInfo {
	if r == nil {
		return nil
	}
	typ := NormalizeType(raw)
	if typ == "" {
		return nil
	}
	if strings.HasPrefix(typ, genericVectorPrefix) {
		typ = vectorType
	}

	decl, ok := r.ResolveClass(typ)
	if !ok && strings.HasSuffix(typ, "$") {
		decl, ok = r.ResolveClass(strings.TrimSuffix(typ, "$"))
	}
	if !ok || decl == nil {
		return nil
	}

	info := &classInfo{
		fqn:       decl.QualifiedName,
		dynamic:   decl.Dynamic,
		own:       make(map[string]MemberKind),
		inherited: make(map[string]MemberKind),
	}
	for _, m := range decl.Members {
		if _, dup := info.own[m.Name]; !dup {
			info.own[m.Name] = m.kind()
		}
	}

	seen := map[string]bool{decl.QualifiedName: true}
	super := decl.Super
	for depth := 0; super != "" && depth < maxSuperDepth && !seen[super]; depth++ {
		seen[super] = true
		sd, ok := r.ResolveClass(super)
		if !ok || sd == nil {
			break
		}
		for _, m := range sd.Members {
			if _, own := info.own[m.Name]; own {
				continue
			}
			if _, dup := info.inherited[m.Name]; !dup {
				info.inherited[m.Name] = m.kind()
			}
		}
		super = sd.Super
	}
	return info
}

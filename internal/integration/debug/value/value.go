package value

import (
	"strconv"
	"strings"
)

// Markers in fdb value text.
const (
	ObjectMarker  = "Object "
	ClassMarker   = ", class='"
	Delim         = " = "
	TextMarker    = " text "
	ElementMarker = " element "

	vectorPrefix        = "__AS3__.vec::"
	vectorType          = "Vector"
	genericVectorPrefix = "Vector.<"
	xmlType             = "XML"
	xmlListType         = "XMLList"
)

// CannotEvaluatePrefix starts the text of a failed evaluation.
const CannotEvaluatePrefix = "Cannot evaluate expression: "

// Kind is the role a value plays in its parent.
type Kind int

const (
	KindThis Kind = iota
	KindParameter
	KindVariable
	KindField
	KindScopeChainEntry
	KindOther
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindThis:
		return "this"
	case KindParameter:
		return "parameter"
	case KindVariable:
		return "variable"
	case KindField:
		return "field"
	case KindScopeChainEntry:
		return "scope"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Value is one inspected value.
type Value struct {
	// Name is the label shown for the value.
	Name string

	// Expression evaluates the value again in its frame.
	Expression string

	// Result is the unescaped text fdb printed for the value.
	Result string

	// ParentResult is the parent's Result, if any.
	ParentResult string

	// Kind is the value's role.
	Kind Kind

	// Member is set when the declaring class classified the value.
	Member MemberKind

	ctx Context
}

// New creates a value. The result is unescaped according to the context's
// settings.
func New(ctx Context, name, expr, result, parentResult string, kind Kind) *Value {
	all := false
	if ctx != nil {
		all = ctx.Settings().EscapeAll
	}
	return &Value{
		Name:         name,
		Expression:   expr,
		Result:       Unescape(result, all),
		ParentResult: parentResult,
		Kind:         kind,
		ctx:          ctx,
	}
}

// Failed reports whether the value stands for a failed evaluation.
func (v *Value) Failed() bool {
	return strings.HasPrefix(v.Result, CannotEvaluatePrefix)
}

// IsObject reports whether the result references a player object.
func (v *Value) IsObject() bool {
	return strings.Contains(v.Result, ObjectMarker)
}

// ObjectID returns the normalized object id, if the result has one.
func (v *Value) ObjectID() (string, bool) {
	return ObjectID(v.Result)
}

// Reference returns the "#<id>." prefix used to evaluate children.
func (v *Value) Reference() (string, bool) {
	id, ok := v.ObjectID()
	if !ok {
		return "", false
	}
	return "#" + id + ".", true
}

// RawType returns the class text as fdb printed it, with the vector
// namespace stripped.
func (v *Value) RawType() string {
	t, _ := TypeOf(v.Result)
	return t
}

// Type returns the qualified class name, or "" for function objects.
func (v *Value) Type() string {
	return NormalizeType(v.RawType())
}

// settings returns the context settings or the defaults.
func (v *Value) settings() Settings {
	if v.ctx == nil {
		return DefaultSettings()
	}
	return v.ctx.Settings()
}

// ObjectID extracts the id after the "Object " marker and normalizes it.
func ObjectID(result string) (string, bool) {
	i := strings.Index(result, ObjectMarker)
	if i < 0 {
		return "", false
	}
	rest := result[i+len(ObjectMarker):]
	end := strings.IndexByte(rest, ',')
	if end < 0 {
		return "", false
	}
	id, ok := NormalizeID(strings.TrimSpace(rest[:end]))
	return id, ok
}

// NormalizeID maps a decimal object id onto its unsigned 32-bit value,
// taken modulo 2^32 for ids of any length. Some players print ids as
// negative numbers; they are only accepted back in unsigned form.
func NormalizeID(s string) (string, bool) {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return s, false
	}
	var n uint64
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return s, false
		}
		n = (n*10 + uint64(c-'0')) & 0xFFFFFFFF
	}
	if len(digits) < len(s) {
		n = -n & 0xFFFFFFFF
	}
	return strconv.FormatUint(n, 10), true
}

// TypeOf splits the quoted class text of an object result into the type and
// the additional info that follows an "@<address>" discriminator.
//
//	[Object 52571545, class='flash.events::MouseEvent']
//	[Object 52571545, class='Main$/staticFunction']
//	[Object 62823129, class='XML@3be9ad9 element <abc/>']
func TypeOf(result string) (typ, info string) {
	classIndex := strings.Index(result, ClassMarker)
	lastQuote := strings.LastIndex(result, "'")
	if classIndex < 0 || lastQuote <= classIndex {
		return "", ""
	}

	quoted := result[classIndex+len(ClassMarker) : lastQuote]
	if at := strings.Index(quoted, "@"); at > 0 {
		typ = quoted[:at]
		if sp := strings.Index(quoted[at:], " "); sp >= 0 {
			info = quoted[at+sp:]
		}
	} else {
		typ = quoted
	}

	if typ == "[]" {
		typ = "Array"
	}
	return strings.ReplaceAll(typ, vectorPrefix, ""), info
}

// NormalizeType replaces namespace separators. Function objects, whose
// class text contains a slash, have no type. A trailing "$" marks a static
// context and is kept.
func NormalizeType(raw string) string {
	if raw == "" || strings.Contains(raw, "/") {
		return ""
	}
	return strings.ReplaceAll(raw, "::", ".")
}

// ChildPath builds the expression for a named child of expr.
func ChildPath(expr, name string) string {
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		return expr + `["` + name + `"]`
	}
	return expr + "." + name
}

// StripResultPrefix removes the "$N = " or "name = " prefix of an
// evaluation response.
func StripResultPrefix(s string) string {
	if i := strings.Index(s, Delim); i >= 0 {
		s = s[i+len(Delim):]
	}
	return strings.TrimSpace(s)
}

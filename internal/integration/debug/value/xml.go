package value

import (
	"strings"
)

const xmlIndent = "  "

func (v *Value) presentXMLList(node Node, text string) {
	node.SetPresentation(Presentation{
		Type:        xmlListType,
		Text:        text,
		HasChildren: true,
		Full:        v.xmlFullValue(node),
	})
}

// presentXML shows the class info the legacy debugger prints for XML:
//
//	" text element content"
//	" element <root attr="attrValue">"
//	" element <child/>"
func (v *Value) presentXML(node Node, info string) {
	max := v.settings().MaxLength
	isElement := strings.HasPrefix(info, ElementMarker+"<") && strings.HasSuffix(info, ">")
	isEmptyElement := isElement && strings.HasSuffix(info, "/>")
	isText := !isElement && strings.HasPrefix(info, TextMarker)

	var text string
	switch {
	case isText:
		text = info[len(TextMarker):]
	case isEmptyElement:
		text = info[len(ElementMarker):]
	case isElement:
		startTag := info[len(ElementMarker):]
		text = startTag + "..." + "</" + tagName(startTag) + "> "
		if max > 0 && len(text) > max {
			text = cut(text, max)
		}
		node.SetPresentation(Presentation{Type: xmlType, Text: text, HasChildren: true, Full: v.xmlFullValue(node)})
		return
	default:
		text = info
	}

	text, full := fullValueIfNeeded(text, max, true)
	node.SetPresentation(Presentation{Type: xmlType, Text: text, HasChildren: true, Full: full})
}

// tagName extracts the element name of a start tag.
func tagName(startTag string) string {
	if len(startTag) < 2 {
		return ""
	}
	end := len(startTag) - 1
	if sp := strings.IndexByte(startTag, ' '); sp > 0 {
		end = sp
	}
	name := startTag[1:end]
	return strings.TrimSuffix(name, "/")
}

func (v *Value) scheduleToXMLString(node Node, typ string) {
	if v.ctx == nil {
		return
	}
	v.ctx.Evaluate(Request{
		Expression: v.Expression + ".toXMLString()",
		Delay:      v.settings().XMLDelay,
		Obsolete:   node.Obsolete,
		Done: func(r Result) {
			if r.Err != nil || node.Obsolete() {
				return
			}
			text, full := fullValueIfNeeded(r.Text, v.settings().MaxLength, true)
			node.SetPresentation(Presentation{Type: typ, Text: text, HasChildren: true, Full: full})
		},
	})
}

func (v *Value) xmlFullValue(node Node) *FullValue {
	return &FullValue{
		Monospaced: true,
		eval: func(done func(string, error)) {
			b := &xmlBuilder{obsolete: node.Obsolete}
			b.build(v, "", func(text string, err error) {
				done(strings.TrimSuffix(text, "\n"), err)
			})
		},
	}
}

// xmlBuilder reassembles markup from the children of legacy XML values.
// It checks for obsolescence before every expansion.
type xmlBuilder struct {
	obsolete func() bool
}

func (b *xmlBuilder) build(v *Value, indent string, done func(string, error)) {
	if b.obsolete != nil && b.obsolete() {
		done("", ErrObsolete)
		return
	}

	raw, info := TypeOf(v.Result)
	switch {
	case raw == xmlType && strings.HasPrefix(info, TextMarker):
		done(indent+strings.TrimSpace(info[len(TextMarker):])+"\n", nil)
		return
	case raw == xmlType && strings.HasPrefix(info, ElementMarker+"<") && strings.HasSuffix(info, "/>"):
		done(indent+info[len(ElementMarker):]+"\n", nil)
		return
	case raw == xmlType && strings.HasPrefix(info, ElementMarker+"<") && strings.HasSuffix(info, ">"):
		startTag := info[len(ElementMarker):]
		b.buildElements(v, indent+xmlIndent, func(body string, err error) {
			if err != nil {
				done("", err)
				return
			}
			done(indent+startTag+"\n"+body+indent+"</"+tagName(startTag)+">\n", nil)
		})
		return
	case raw == xmlListType:
		b.buildElements(v, indent, done)
		return
	}

	if v.IsObject() {
		done(indent+v.Result+"\n", nil)
		return
	}
	done(indent+strings.Trim(v.Result, `"'`)+"\n", nil)
}

// buildElements expands the numbered children of v in order.
func (b *xmlBuilder) buildElements(v *Value, indent string, done func(string, error)) {
	ref, ok := v.Reference()
	if !ok || v.ctx == nil {
		done("", nil)
		return
	}
	v.ctx.Evaluate(Request{
		Expression: ref,
		Raw:        true,
		Obsolete:   b.obsolete,
		Done: func(r Result) {
			if r.Err != nil {
				done("", r.Err)
				return
			}
			if r.Failed {
				done("", nil)
				return
			}
			var elements []*Value
			v.parseMembers(r.Text, v.RawType()).each(func(c *Value) {
				if isInteger(c.Name) {
					elements = append(elements, c)
				}
			})
			sortElements(elements)
			b.buildSeq(elements, indent, "", done)
		},
	})
}

func (b *xmlBuilder) buildSeq(elements []*Value, indent, acc string, done func(string, error)) {
	if len(elements) == 0 {
		done(acc, nil)
		return
	}
	b.build(elements[0], indent, func(text string, err error) {
		if err != nil {
			done("", err)
			return
		}
		b.buildSeq(elements[1:], indent, acc+text, done)
	})
}

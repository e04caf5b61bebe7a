package value

import (
	"strconv"
	"strings"
)

const (
	escapeStart = "IDEA-ESCAPE-START"
	escapeEnd   = "IDEA-ESCAPE-END"
)

// Unescape decodes escape sequences fdb added to a result. With all set
// the whole string is decoded; otherwise only the text between escape
// markers is, and the markers are removed.
func Unescape(s string, all bool) string {
	if all {
		return unescapeChars(s)
	}

	var b strings.Builder
	for {
		start := strings.Index(s, escapeStart)
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		s = s[start+len(escapeStart):]

		end := strings.Index(s, escapeEnd)
		if end < 0 {
			b.WriteString(unescapeChars(s))
			return b.String()
		}
		b.WriteString(unescapeChars(s[:end]))
		s = s[end+len(escapeEnd):]
	}
}

// unescapeChars decodes backslash escapes. Unknown escapes keep the
// escaped character.
func unescapeChars(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+4 < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

package fdb

import "strings"

// LineIterator walks the non-empty, trimmed lines of one response.
type LineIterator struct {
	lines []string
	pos   int
}

// NewLineIterator splits text into trimmed lines, dropping empty ones.
func NewLineIterator(text string) *LineIterator {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return &LineIterator{lines: lines}
}

// HasNext reports whether another line is available.
func (it *LineIterator) HasNext() bool {
	return it.pos < len(it.lines)
}

// Next returns the next line and advances. It returns "" when exhausted.
func (it *LineIterator) Next() string {
	if !it.HasNext() {
		return ""
	}
	l := it.lines[it.pos]
	it.pos++
	return l
}

// Peek returns the next line without advancing.
func (it *LineIterator) Peek() string {
	if !it.HasNext() {
		return ""
	}
	return it.lines[it.pos]
}

// Len returns the total number of lines.
func (it *LineIterator) Len() int {
	return len(it.lines)
}

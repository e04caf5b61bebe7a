package fdb

import "strings"

// Markers that terminate a protocol unit.
const (
	PromptMarker  = "(fdb) "
	ConfirmMarker = "(y or n) "
)

// Notices printed while fdb waits for the player. They have no prompt after
// them, so text containing them is released without a marker.
const (
	WaitingForPlayerNotice = "Waiting for Player to connect"
	TryingToConnectNotice  = "Trying to connect to Player"
)

// Marker identifies what ended a Unit.
type Marker int

const (
	// MarkerNone means the unit was released without a terminator.
	MarkerNone Marker = iota
	// MarkerPrompt means the unit ended at "(fdb) ".
	MarkerPrompt
	// MarkerConfirm means the unit ended at "(y or n) ".
	MarkerConfirm
)

// String returns a string representation of the marker.
func (m Marker) String() string {
	switch m {
	case MarkerNone:
		return "none"
	case MarkerPrompt:
		return "prompt"
	case MarkerConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// Unit is one protocol response cut from the output stream.
type Unit struct {
	Text   string
	Marker Marker
}

// Terminated reports whether the unit ended at a marker. fdb only prints a
// marker once the player is halted or the debugger awaits input.
func (u Unit) Terminated() bool {
	return u.Marker != MarkerNone
}

// Scanner accumulates decoded output and cuts it into Units. It has two
// states: awaiting a marker (buffer holds no complete unit) and holding a
// unit. Scanner is not safe for concurrent use.
type Scanner struct {
	buf strings.Builder
}

// Feed appends decoded output to the buffer.
func (s *Scanner) Feed(text string) {
	s.buf.WriteString(text)
}

// Len returns the number of buffered bytes not yet returned as a unit.
func (s *Scanner) Len() int {
	return s.buf.Len()
}

// Next returns the next unit if one is available. With allowUnterminated set
// any buffered text is released even without a marker, except for a trailing
// partial marker which stays buffered until the rest of it arrives. Text
// holding a player connection notice is always released.
func (s *Scanner) Next(allowUnterminated bool) (Unit, bool) {
	text := s.buf.String()
	if text == "" {
		return Unit{}, false
	}

	if i, m, n := findMarker(text); i >= 0 {
		s.reset(text[i+n:])
		return Unit{Text: text[:i], Marker: m}, true
	}

	if !allowUnterminated &&
		!strings.Contains(text, WaitingForPlayerNotice) &&
		!strings.Contains(text, TryingToConnectNotice) {
		return Unit{}, false
	}

	keep := partialMarkerSuffix(text)
	if keep == len(text) {
		return Unit{}, false
	}
	s.reset(text[len(text)-keep:])
	return Unit{Text: text[:len(text)-keep]}, true
}

// Drain returns everything buffered and empties the scanner.
func (s *Scanner) Drain() string {
	text := s.buf.String()
	s.buf.Reset()
	return text
}

func (s *Scanner) reset(rest string) {
	s.buf.Reset()
	s.buf.WriteString(rest)
}

// findMarker returns the position, kind and length of the earliest marker.
func findMarker(text string) (int, Marker, int) {
	p := strings.Index(text, PromptMarker)
	c := strings.Index(text, ConfirmMarker)
	switch {
	case p < 0 && c < 0:
		return -1, MarkerNone, 0
	case c < 0 || (p >= 0 && p < c):
		return p, MarkerPrompt, len(PromptMarker)
	default:
		return c, MarkerConfirm, len(ConfirmMarker)
	}
}

// partialMarkerSuffix returns the length of the longest suffix of text that
// is a proper prefix of a marker.
func partialMarkerSuffix(text string) int {
	best := 0
	for _, marker := range []string{PromptMarker, ConfirmMarker} {
		for n := len(marker) - 1; n > best; n-- {
			if strings.HasSuffix(text, marker[:n]) {
				best = n
				break
			}
		}
	}
	return best
}

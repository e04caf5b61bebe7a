package debug

import (
	"strings"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
)

// scan interprets output that no command claimed: breakpoint hits, stops,
// trace output and notices about loaded code.
func (s *Session) scan(text string) {
	it := fdb.NewLineIterator(text)
	insertContinue := false
	nonSuspending := false
	halted := false

	for it.HasNext() {
		line := fdb.Classify(it.Next())

		switch line.Kind {
		case fdb.LineWorkerChanged:
			s.worker = line.Worker
		case fdb.LineCodeLoaded:
			if !s.suspended.Load() {
				// Picks up the prompt fdb prints after the notice.
				if u, err := s.reader.Next(false); err == nil {
					s.suspended.Store(u.Terminated())
				}
			}
			s.files.Files().Invalidate()
		case fdb.LineBreakpointHit:
			suspend, known := s.breakpointHit(line.Index)
			switch {
			case !known:
				// A temporary run-to-position breakpoint.
				_ = s.queue.PushFront(s.deleteIndex(line.Index))
			case suspend:
				halted = true
			default:
				nonSuspending = true
				insertContinue = true
			}
		case fdb.LineLocation:
			if !nonSuspending || halted {
				_ = s.queue.PushFront(s.locationCommand())
			}
		case fdb.LineTrace, fdb.LineFault, fdb.LineSWF:
			s.printStd(line, it)
		case fdb.LineBreakpointResolved:
			s.breakpoints.setStatus(line.Index, BreakpointVerified, "")
		case fdb.LineAttemptingResolve:
			s.attemptingResolve(line.Index, it)
			insertContinue = true
		case fdb.LineSetAdditional:
			insertContinue = true
		case fdb.LineExecutionHalted:
			s.reporter.SessionPaused()
		case fdb.LineUnparsable:
			s.logger.Warn("unparsable fdb line", "line", line.Text)
			s.console.Print(line.Text+"\n", OutputSystem)
		default:
			s.console.Print(line.Text+"\n", OutputSystem)
		}
	}

	// A suspending hit in the same batch keeps the player stopped.
	if insertContinue && !halted {
		_ = s.queue.PushFront(fdb.Continue())
	}
}

// attemptingResolve handles the lines that follow "Attempting to resolve
// breakpoint N".
func (s *Session) attemptingResolve(index int, it *fdb.LineIterator) {
	next := it.Peek()
	switch {
	case strings.Contains(next, fdb.NoExecutableCodeNotice):
		it.Next()
		s.breakpoints.setStatus(index, BreakpointInvalid, next)
	case strings.HasPrefix(next, fdb.AmbiguousFilenamesNotice):
		it.Next()
		for it.HasNext() && strings.HasPrefix(it.Peek(), "#") {
			it.Next()
		}
		bp, ok := s.breakpoints.lookup(index)
		if !ok {
			return
		}
		s.files.Files().Invalidate()
		if _, found := s.files.Files().IDFor(bp.Path); !found {
			s.breakpoints.setStatus(index, BreakpointInvalid, "ambiguous file name")
			return
		}
		_ = s.queue.PushBack(s.deleteIndex(index))
		_ = s.queue.PushBack(s.insertCommand(bp))
	}
}

// printStd reports trace, fault and SWF lines. Fault lines take the
// "at ..." stack lines following them.
func (s *Session) printStd(line fdb.Line, it *fdb.LineIterator) {
	switch line.Kind {
	case fdb.LineTrace:
		s.console.Print(line.Text+"\n", OutputNormal)
	case fdb.LineFault:
		s.console.Print(line.Text+"\n", OutputSystem)
		for it != nil && strings.HasPrefix(it.Peek(), "at ") {
			s.console.Print("\t"+it.Next()+"\n", OutputSystem)
		}
	case fdb.LineSWF:
		if !s.filterSWF {
			s.console.Print(line.Text+"\n", OutputSystem)
		}
	}
}

// filterStdResponse handles the output fdb may print ahead of a command's
// own response and reports whether text held nothing else.
func (s *Session) filterStdResponse(text string) bool {
	std := true
	it := fdb.NewLineIterator(text)
	for it.HasNext() {
		raw := it.Next()
		if strings.HasPrefix(raw, "$") {
			return false
		}
		line := fdb.Classify(raw)
		switch line.Kind {
		case fdb.LineLocation:
			_ = s.queue.PushBack(s.locationCommand())
		case fdb.LineTrace, fdb.LineFault, fdb.LineSWF:
			s.printStd(line, it)
		default:
			std = false
		}
	}
	return std
}

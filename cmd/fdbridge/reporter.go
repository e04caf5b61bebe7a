package main

import (
	"sync"

	"github.com/dshills/fdbridge/internal/console"
	"github.com/dshills/fdbridge/internal/integration/debug"
)

// consoleReporter prints session events. Hits are always honored; log
// points print their message and let the session decide from the
// breakpoint whether to stay halted.
type consoleReporter struct {
	out *console.Console

	mu     sync.Mutex
	halted chan struct{}
}

func (r *consoleReporter) BreakpointHit(bp *debug.Breakpoint, logMessage string, sc *debug.SuspendContext) bool {
	if logMessage != "" {
		r.out.Printf("%s\n", logMessage)
	}
	if !bp.Suspend {
		return true
	}
	r.out.Highlightf("Breakpoint %d, %s", bp.ID, frameText(sc))
	r.notify()
	return true
}

func (r *consoleReporter) PositionReached(sc *debug.SuspendContext) {
	r.out.Highlightf("Stopped at %s", frameText(sc))
	r.notify()
}

func (r *consoleReporter) SessionPaused() {
	r.out.Infof("Execution halted")
}

func (r *consoleReporter) SessionDetached(err error) {
	if err != nil {
		r.out.Errorf("Debug session ended: %v", err)
		return
	}
	r.out.Infof("Debug session ended")
}

// Halted returns a channel closed at the next halt.
func (r *consoleReporter) Halted() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.halted == nil {
		r.halted = make(chan struct{})
	}
	return r.halted
}

func (r *consoleReporter) notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.halted != nil {
		close(r.halted)
		r.halted = nil
	}
}

func frameText(sc *debug.SuspendContext) string {
	if sc == nil || sc.TopFrame() == nil {
		return "unknown location"
	}
	f := sc.TopFrame()
	return f.Scope() + " at " + f.Position().String()
}

package debug

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
	"github.com/dshills/fdbridge/internal/log"
)

// maxLoggedResponse bounds response text in debug logs.
const maxLoggedResponse = 512

var (
	// errNothingToPost marks a command whose text turned out empty.
	errNothingToPost = errors.New("nothing to post")

	// errSessionEnded stops the dispatcher after terminate ran.
	errSessionEnded = errors.New("session ended")
)

// runLoop is the dispatcher. It owns fdb's stdin and stdout.
func (s *Session) runLoop() {
	defer s.wg.Done()

	for {
		cmd, err := s.queue.Pop()
		if err != nil {
			return
		}

		cmd, err = s.prepare(cmd)
		if err == nil && cmd != nil {
			err = s.processOne(cmd)
		}
		if err != nil {
			if cmd != nil {
				cmd.Fail(ErrSessionTerminated)
			}
			if !errors.Is(err, errSessionEnded) {
				s.terminate(fmt.Errorf("fdb connection lost: %w", err))
			}
			return
		}
		if s.quitting {
			s.terminate(nil)
			return
		}
	}
}

// prepare decides what to post for the next queued command: it brackets
// commands that need a halted player with suspend/continue, expands
// composites and reorders around commands that leave the player running.
// It returns the command whose response must be read, or nil.
func (s *Session) prepare(cmd *fdb.Command) (*fdb.Command, error) {
	executing := !s.suspended.Load() && s.startupDone.Load()

	if cmd.Start == fdb.Running {
		if !executing {
			if cmd.Kind == fdb.KindSuspend || cmd.Kind == fdb.KindSuspendResume {
				s.afterSuspend(cmd.Inner, cmd.Kind == fdb.KindSuspendResume)
			}
			if cmd.Output != fdb.OutputDefault {
				return nil, nil
			}
		}
		return s.send(cmd)
	}

	if !executing && cmd.End == fdb.Running {
		// Run a waiting inspection command before the player leaves.
		if next := s.queue.Peek(); next != nil && next.Start == fdb.Suspended {
			taken := s.queue.TakeFront()
			if taken.End == fdb.Suspended && taken.Kind != fdb.KindQuit {
				_ = s.queue.PushFront(cmd)
			}
			cmd = taken
		}
	}

	if executing {
		cmd = fdb.SuspendResume(cmd)
	} else if cmd.Kind == fdb.KindComposite {
		if sub := cmd.NextSub(); sub != nil {
			_ = s.queue.PushFront(cmd)
			_ = s.queue.PushFront(sub)
		}
		return nil, nil
	}
	return s.send(cmd)
}

// afterSuspend queues inner, and a continue after it when the suspend
// was only a bracket.
func (s *Session) afterSuspend(inner *fdb.Command, resume bool) {
	if resume && (inner == nil || inner.Kind != fdb.KindQuit) {
		_ = s.queue.PushFront(fdb.Continue())
	}
	if inner != nil {
		_ = s.queue.PushFront(inner)
	}
}

// send posts cmd and returns it if its response must be read. Commands
// with empty text run their handler in place.
func (s *Session) send(cmd *fdb.Command) (*fdb.Command, error) {
	err := s.post(cmd)
	switch {
	case errors.Is(err, errNothingToPost):
		cmd.Handle("")
		return nil, nil
	case err != nil:
		return cmd, err
	}
	return cmd, nil
}

func (s *Session) post(cmd *fdb.Command) error {
	switch cmd.Kind {
	case fdb.KindGreeting, fdb.KindDumpOutput:
		return nil
	}

	text := cmd.Text()
	if text == "" {
		return errNothingToPost
	}
	if cmd.Kind == fdb.KindContinue || cmd.Kind == fdb.KindStep {
		s.resumed()
	}
	s.suspended.Store(cmd.Output == fdb.OutputNone && cmd.End == fdb.Suspended)

	s.logger.Debug("fdb command", "kind", cmd.Kind.String(), "text", log.Chunk(text, maxLoggedResponse))
	if _, err := io.WriteString(s.in, text+"\n"); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Kind, err)
	}
	return nil
}

// resumed invalidates everything tied to the current halt.
func (s *Session) resumed() {
	s.generation.Add(1)
	s.hitReported = false
	s.current.Store(nil)
	s.chain = nil
}

// processOne reads the responses of a posted command.
func (s *Session) processOne(cmd *fdb.Command) error {
	if cmd.Kind == fdb.KindDumpOutput && !s.reader.Pending() && s.reader.Closed() {
		return fdb.ErrTransportClosed
	}

	explicit := false
	for {
		if cmd.Output == fdb.OutputNone ||
			(cmd.Output == fdb.OutputDefault && !explicit && !s.reader.Pending()) {
			return nil
		}
		if cmd.Kind != fdb.KindDumpOutput {
			s.checkStartupStop = false
		}
		if cmd.Kind == fdb.KindQuit {
			s.quitting = true
		}

		unit, err := s.reader.Next(cmd.End == fdb.Running)
		if err != nil {
			if s.quitting {
				return nil
			}
			return err
		}
		s.suspended.Store(unit.Terminated())

		if strings.Contains(unit.Text, fdb.SessionTerminatedNotice) && cmd.Kind != fdb.KindSuspendResume {
			s.unexpectedStop(unit.Text)
			return errSessionEnded
		}

		text := strings.TrimSpace(unit.Text)
		s.logger.Debug("fdb response", "command", cmd.Kind.String(), "marker", unit.Marker.String(),
			"text", log.Chunk(text, maxLoggedResponse))

		if cmd.Output == fdb.OutputSpecial {
			if s.handle(cmd, text) == fdb.Done {
				return nil
			}
			explicit = true
			continue
		}

		s.scan(text)
		if !s.reader.Pending() {
			return nil
		}
	}
}

// handle routes a response to the built-in handshakes or the command's
// own handler.
func (s *Session) handle(cmd *fdb.Command, text string) fdb.Progress {
	switch cmd.Kind {
	case fdb.KindSuspend, fdb.KindSuspendResume:
		_ = s.queue.PushFront(fdb.ConfirmSuspend(cmd.Inner, cmd.Kind == fdb.KindSuspendResume))
		return fdb.Done
	case fdb.KindConfirmSuspend:
		s.afterSuspend(cmd.Inner, cmd.Resumes())
		return fdb.Done
	case fdb.KindGreeting:
		if text != "" {
			s.console.Print(text+"\n", OutputSystem)
		}
		return fdb.Done
	case fdb.KindQuit:
		return fdb.Done
	}
	return cmd.Handle(text)
}

// execNow posts cmd and reads its response synchronously. It must be called
// on the dispatcher while the player is halted.
func (s *Session) execNow(cmd *fdb.Command) error {
	if !s.suspended.Load() {
		return ErrNotSuspended
	}
	posted, err := s.send(cmd)
	if err != nil || posted == nil {
		return err
	}
	return s.processOne(posted)
}

// loadFiles lists the files fdb knows for the active worker.
func (s *Session) loadFiles(worker int) (string, error) {
	var out string
	cmd := fdb.New(fdb.KindFileList, "show files", fdb.OutputSpecial, fdb.Suspended, fdb.Suspended,
		func(text string) fdb.Progress {
			out = text
			return fdb.Done
		})
	if err := s.execNow(cmd); err != nil {
		return "", fmt.Errorf("show files for worker %d: %w", worker, err)
	}
	return out, nil
}

// unexpectedStop ends the session after fdb reported the player gone.
func (s *Session) unexpectedStop(text string) {
	if s.quitting {
		s.terminate(nil)
		return
	}
	s.printLines(text, OutputSystem)

	var err error
	if s.checkStartupStop || !s.startupDone.Load() {
		err = fmt.Errorf("%w: player stopped during startup", ErrLaunchFailed)
	}
	s.terminate(err)
}

// idleDrain queues an output drain when fdb printed something nobody
// asked for, or its output ended.
func (s *Session) idleDrain() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.idlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.startupDone.Load() && (s.reader.Pending() || s.reader.Closed()) && !s.queue.Has(fdb.KindDumpOutput) {
				_ = s.queue.PushBack(fdb.DumpOutput())
			}
		}
	}
}

// drainStderr forwards fdb's stderr to the console.
func (s *Session) drainStderr() {
	defer s.wg.Done()

	sc := bufio.NewScanner(s.stderr)
	for sc.Scan() {
		s.console.Print(sc.Text()+"\n", OutputError)
	}
}

func (s *Session) printLines(text string, kind OutputKind) {
	it := fdb.NewLineIterator(text)
	for it.HasNext() {
		s.console.Print(it.Next()+"\n", kind)
	}
}

package debug

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
	"github.com/dshills/fdbridge/internal/integration/debug/files"
	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

// SessionState represents the current state of a debug session.
type SessionState int

const (
	// StateStarting is before the player connected.
	StateStarting SessionState = iota
	// StateRunning is when the player executes.
	StateRunning
	// StateSuspended is when the player is halted.
	StateSuspended
	// StateTerminated is when the session has ended.
	StateTerminated
)

// String returns a string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultIdlePoll is how often unsolicited output is checked for.
const DefaultIdlePoll = 100 * time.Millisecond

// Session is one fdb debugging session.
//
// All protocol traffic happens on a single dispatcher goroutine. Public
// methods may be called from any goroutine; they only enqueue commands and
// read snapshots.
type Session struct {
	id        string
	logger    *slog.Logger
	transport Transport
	in        io.Writer
	stderr    io.Reader
	reader    *fdb.Reader
	queue     *fdb.Queue

	console   Console
	reporter  Reporter
	launcher  PlayerLauncher
	scope     Scope
	finder    files.Finder
	exists    func(string) bool
	classes   value.ClassResolver
	settings  value.Settings
	charset   encoding.Encoding
	idlePoll  time.Duration
	filterSWF bool

	files       *files.Resolver
	breakpoints *breakpointTable

	ctx    context.Context
	cancel context.CancelFunc

	// Written by the dispatcher, read anywhere.
	suspended   atomic.Bool
	startupDone atomic.Bool
	generation  atomic.Uint64
	current     atomic.Pointer[SuspendContext]
	ended       atomic.Bool
	launched    atomic.Bool

	// Dispatcher goroutine only.
	quitting         bool
	checkStartupStop bool
	hitReported      bool
	worker           int
	chain            *scopeChain
	chainKey         string
	chainGen         uint64

	started     chan struct{}
	startedOnce sync.Once
	done        chan struct{}
	termOnce    sync.Once
	errMu       sync.Mutex
	err         error
	wg          sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the base logger. The session adds its id.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConsole sets where program and debugger output goes.
func WithConsole(c Console) Option {
	return func(s *Session) {
		if c != nil {
			s.console = c
		}
	}
}

// WithReporter sets the receiver of session events.
func WithReporter(r Reporter) Option {
	return func(s *Session) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithPlayerLauncher sets what starts the player when fdb waits for it.
// Without one the session waits for the player to be started externally.
func WithPlayerLauncher(l PlayerLauncher) Option {
	return func(s *Session) {
		s.launcher = l
	}
}

// WithScope restricts where breakpoints are set.
func WithScope(sc Scope) Option {
	return func(s *Session) {
		s.scope = sc
	}
}

// WithFinder sets the project search used to resolve fdb file names.
func WithFinder(f files.Finder) Option {
	return func(s *Session) {
		s.finder = f
	}
}

// WithFileExists overrides the check that a path fdb reported exists.
func WithFileExists(fn func(string) bool) Option {
	return func(s *Session) {
		s.exists = fn
	}
}

// WithClassResolver sets the declaration lookup used to group members.
func WithClassResolver(r value.ClassResolver) Option {
	return func(s *Session) {
		s.classes = r
	}
}

// WithValueSettings sets how values are decoded and presented.
func WithValueSettings(v value.Settings) Option {
	return func(s *Session) {
		s.settings = v
	}
}

// WithCharset sets the encoding of fdb's stdio. nil means UTF-8.
func WithCharset(enc encoding.Encoding) Option {
	return func(s *Session) {
		s.charset = enc
	}
}

// WithIdlePoll sets how often unsolicited output is drained.
func WithIdlePoll(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.idlePoll = d
		}
	}
}

// WithFilterSWF hides [SWF] and [UnloadSWF] notices.
func WithFilterSWF(filter bool) Option {
	return func(s *Session) {
		s.filterSWF = filter
	}
}

// NewSession prepares a session over an fdb subprocess. The greeting and
// the "run" handshake are queued; nothing is sent until Start. Breakpoints
// registered before Start are set right after the player connects.
func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		logger:   slog.Default(),
		console:  discardConsole{},
		reporter: nopReporter{},
		settings: value.DefaultSettings(),
		idlePoll: DefaultIdlePoll,
		worker:   files.MainWorker,
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.transport = t
	s.in = t.Stdin()
	out := t.Stdout()
	s.stderr = t.Stderr()
	if s.charset != nil {
		s.in = fdb.EncodeWriter(s.in, s.charset)
		out = fdb.DecodeReader(out, s.charset)
		if s.stderr != nil {
			s.stderr = fdb.DecodeReader(s.stderr, s.charset)
		}
	}
	s.reader = fdb.NewReader(out, fdb.WithReaderLogger(s.logger))
	s.queue = fdb.NewQueue()
	s.files = files.NewResolver(files.NewMap(s.loadFiles), s.finder, s.exists)
	s.breakpoints = newBreakpointTable()

	_ = s.queue.PushBack(fdb.Greeting())
	_ = s.queue.PushBack(fdb.Run(s.handleRun))
	return s
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Start runs the dispatcher and blocks until the player has connected,
// the session failed, or ctx is done.
func (s *Session) Start(ctx context.Context) error {
	if !s.launched.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.wg.Add(2)
	go s.runLoop()
	go s.idleDrain()
	if s.stderr != nil {
		s.wg.Add(1)
		go s.drainStderr()
	}

	select {
	case <-s.started:
		s.logger.Info("debug session started")
		return nil
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return ErrSessionTerminated
	case <-ctx.Done():
		s.terminate(ctx.Err())
		return ctx.Err()
	}
}

// State returns a snapshot of the session state.
func (s *Session) State() SessionState {
	switch {
	case s.ended.Load():
		return StateTerminated
	case !s.startupDone.Load():
		return StateStarting
	case s.suspended.Load():
		return StateSuspended
	default:
		return StateRunning
	}
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended, or nil for a normal end.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Resume continues the player.
func (s *Session) Resume() error {
	if s.State() == StateRunning {
		return nil
	}
	return s.enqueue(fdb.Continue())
}

// Pause halts the player and reports the position reached.
func (s *Session) Pause() error {
	return s.enqueue(fdb.Suspend(s.locationCommand()))
}

// StepOver executes the next line, stepping over calls.
func (s *Session) StepOver() error {
	return s.step("next")
}

// StepInto executes the next line, entering calls.
func (s *Session) StepInto() error {
	return s.step("step")
}

// StepOut runs until the current function returns.
func (s *Session) StepOut() error {
	return s.step("finish")
}

func (s *Session) step(text string) error {
	if s.State() != StateSuspended {
		return ErrNotSuspended
	}
	return s.enqueue(fdb.Step(text))
}

// TopFrame returns the innermost frame of the current halt, or nil while
// the player runs.
func (s *Session) TopFrame() *Frame {
	if sc := s.current.Load(); sc != nil {
		return sc.TopFrame()
	}
	return nil
}

// SuspendContext returns the current halt, or nil while the player runs.
func (s *Session) SuspendContext() *SuspendContext {
	return s.current.Load()
}

// Evaluate evaluates expr in the top frame.
func (s *Session) Evaluate(ctx context.Context, expr string) (*value.Value, error) {
	f := s.TopFrame()
	if f == nil {
		return nil, ErrNotSuspended
	}
	return f.Evaluate(ctx, expr)
}

// Quit ends the fdb session and waits for it to finish.
func (s *Session) Quit(ctx context.Context) error {
	if !s.startupDone.Load() {
		// fdb accepts no commands until the player connects.
		s.terminate(nil)
		return nil
	}
	if err := s.enqueue(fdb.Quit()); err != nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.terminate(nil)
		return ctx.Err()
	}
}

// Close ends the session without asking fdb and waits for its goroutines.
func (s *Session) Close() error {
	s.terminate(nil)
	s.wg.Wait()
	return nil
}

// enqueue appends an externally requested command.
func (s *Session) enqueue(cmd *fdb.Command) error {
	if err := s.queue.PushBack(cmd); err != nil {
		cmd.Fail(ErrSessionTerminated)
		return ErrSessionTerminated
	}
	return nil
}

// terminate ends the session once. Pending commands fail.
func (s *Session) terminate(err error) {
	s.termOnce.Do(func() {
		s.ended.Store(true)
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()

		if err != nil {
			s.logger.Error("debug session failed", "error", err)
		} else {
			s.logger.Info("debug session ended")
		}

		s.cancel()
		for _, cmd := range s.queue.Close() {
			cmd.Fail(ErrSessionTerminated)
		}
		s.reader.Close()
		if cerr := s.transport.Close(); cerr != nil {
			s.logger.Debug("close transport", "error", cerr)
		}
		s.current.Store(nil)
		close(s.done)
		s.reporter.SessionDetached(err)
	})
}

func (s *Session) markStarted() {
	s.startedOnce.Do(func() {
		close(s.started)
	})
}

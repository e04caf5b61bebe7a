package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond

	testShowFiles = "1 /proj/src;;Main.as, Main.as\n2 /proj/src;com/acme;Util.as, Util.as\n"
	testStack     = "#0   this = [Object 100, class='Main'].Main/init() at Main.as:11\n" +
		"#1   this = [Object 100, class='Main'].Main/start(n=1) at Main.as:30"
)

// pipeTransport connects a Session to an in-process fake fdb.
type pipeTransport struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
}

func newPipeTransport() *pipeTransport {
	p := &pipeTransport{}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	return p
}

func (p *pipeTransport) Stdin() io.Writer  { return p.stdinW }
func (p *pipeTransport) Stdout() io.Reader { return p.stdoutR }
func (p *pipeTransport) Stderr() io.Reader { return nil }

func (p *pipeTransport) Close() error {
	_ = p.stdinW.Close()
	_ = p.stdoutR.Close()
	return nil
}

// fakeFDB answers commands the way fdb does. handler may take over any
// command by returning true.
type fakeFDB struct {
	t   *testing.T
	in  *bufio.Reader
	out *io.PipeWriter

	received chan string
	launched chan struct{}
	handler  func(f *fakeFDB, cmd string) bool

	mu       sync.Mutex
	replies  map[string]string
	files    string
	stack    string
	nextBP   int
	quitting bool
	running  atomic.Bool
}

func newFakeFDB(t *testing.T, p *pipeTransport) *fakeFDB {
	return &fakeFDB{
		t:        t,
		in:       bufio.NewReader(p.stdinR),
		out:      p.stdoutW,
		received: make(chan string, 256),
		replies:  make(map[string]string),
		files:    testShowFiles,
		stack:    testStack,
	}
}

func (f *fakeFDB) reply(cmd, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[cmd] = text
}

func (f *fakeFDB) write(text string) {
	_, _ = io.WriteString(f.out, text)
}

func (f *fakeFDB) prompt(text string) {
	f.write(text + "\n(fdb) ")
}

func (f *fakeFDB) serve() {
	f.write("Adobe fdb (Flash Player Debugger) [build 0]\nCopyright (c) 2004-2007 Adobe, Inc. All rights reserved.\n(fdb) ")
	for {
		line, err := f.in.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		f.received <- line
		if !f.respond(line) {
			return
		}
	}
}

func (f *fakeFDB) respond(cmd string) bool {
	if f.handler != nil && f.handler(f, cmd) {
		return true
	}

	f.mu.Lock()
	reply, ok := f.replies[cmd]
	f.mu.Unlock()
	if ok {
		f.prompt(reply)
		return true
	}

	switch {
	case cmd == "run":
		f.write("Waiting for Player to connect\n")
		if f.launched != nil {
			select {
			case <-f.launched:
			case <-time.After(testTimeout):
			}
		}
		f.prompt("Player connected; session starting.\n" +
			"Set breakpoints and then type 'continue' to resume the session.\n" +
			"[SWF] /proj/bin/Main.swf - 1,024 bytes after decompression")
	case cmd == "continue":
		f.running.Store(true)
	case cmd == "suspend":
		f.write("Do you want to attempt to halt execution? (y or n) ")
	case cmd == "quit":
		f.quitting = true
		f.write("Do you really want to quit the debugging session? (y or n) ")
	case cmd == "y":
		if f.quitting {
			_ = f.out.Close()
			return false
		}
		f.running.Store(false)
		f.prompt("Attempting to halt.\nTo help out, try nudging the Player (e.g. press a key).\n" +
			"Execution halted in 'Main.as' at line 11 (0x00c7).")
	case strings.HasPrefix(cmd, "break "):
		f.mu.Lock()
		f.nextBP++
		n := f.nextBP
		f.mu.Unlock()
		loc := strings.TrimPrefix(cmd, "break ")
		colon := strings.LastIndexByte(loc, ':')
		f.prompt(fmt.Sprintf("Breakpoint %d: file Main.as, line %s", n, loc[colon+1:]))
	case cmd == "show files":
		f.mu.Lock()
		files := f.files
		f.mu.Unlock()
		f.write(files + "(fdb) ")
	case cmd == "bt":
		f.prompt(f.stack)
	case cmd == "frame" || strings.HasPrefix(cmd, "frame "):
		f.prompt("#0   this = [Object 100, class='Main'].Main/init() at Main.as:11")
	case cmd == "next" || cmd == "step" || cmd == "finish":
		f.prompt(" 12     start(2);")
	case cmd == "info scopechain":
		f.prompt("Scope chain:\n0 = [Object 100, class='Main']\n1 = [Object 7, class='global']")
	case strings.HasPrefix(cmd, "print "):
		f.prompt("Expression " + strings.TrimPrefix(cmd, "print ") + " could not be evaluated.")
	default:
		f.write("(fdb) ")
	}
	return true
}

// hit reports a breakpoint hit while the player runs.
func (f *fakeFDB) hit(index, line int) {
	f.running.Store(false)
	f.prompt(fmt.Sprintf("Breakpoint %d, init() at Main.as:%d\n%3d     trace(\"hit\");", index, line, line))
}

// expect waits for the next commands fdb receives, in order.
func (f *fakeFDB) expect(want ...string) {
	f.t.Helper()
	for _, w := range want {
		select {
		case got := <-f.received:
			require.Equal(f.t, w, got)
		case <-time.After(testTimeout):
			f.t.Fatalf("timed out waiting for %q", w)
		}
	}
}

// drain returns the commands received so far.
func (f *fakeFDB) drain() []string {
	var out []string
	for {
		select {
		case c := <-f.received:
			out = append(out, c)
		default:
			return out
		}
	}
}

type hitEvent struct {
	bp  *Breakpoint
	msg string
	sc  *SuspendContext
}

type recordingReporter struct {
	verdict func(*Breakpoint) bool

	hits      chan hitEvent
	positions chan *SuspendContext
	paused    chan struct{}
	detached  chan error
	detaches  atomic.Int32
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{
		hits:      make(chan hitEvent, 16),
		positions: make(chan *SuspendContext, 16),
		paused:    make(chan struct{}, 16),
		detached:  make(chan error, 16),
	}
}

func (r *recordingReporter) BreakpointHit(bp *Breakpoint, msg string, sc *SuspendContext) bool {
	r.hits <- hitEvent{bp: bp, msg: msg, sc: sc}
	if r.verdict != nil {
		return r.verdict(bp)
	}
	return true
}

func (r *recordingReporter) PositionReached(sc *SuspendContext) { r.positions <- sc }
func (r *recordingReporter) SessionPaused()                     { r.paused <- struct{}{} }

func (r *recordingReporter) SessionDetached(err error) {
	r.detaches.Add(1)
	r.detached <- err
}

type recordingConsole struct {
	mu    sync.Mutex
	lines []string
}

func (c *recordingConsole) Print(text string, kind OutputKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, kind.String()+": "+strings.TrimRight(text, "\n"))
}

func (c *recordingConsole) contains(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

type launcherFunc func(ctx context.Context) error

func (f launcherFunc) LaunchPlayer(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	session  *Session
	fdb      *fakeFDB
	reporter *recordingReporter
	console  *recordingConsole
}

// newTestEnv wires a session to a fake fdb without starting it. script,
// if not nil, adjusts the fake before it greets.
func newTestEnv(t *testing.T, script func(*fakeFDB), opts ...Option) *testEnv {
	t.Helper()

	p := newPipeTransport()
	env := &testEnv{
		fdb:      newFakeFDB(t, p),
		reporter: newRecordingReporter(),
		console:  &recordingConsole{},
	}
	if script != nil {
		script(env.fdb)
	}
	base := []Option{
		WithReporter(env.reporter),
		WithConsole(env.console),
		WithIdlePoll(testTick),
	}
	env.session = NewSession(p, append(base, opts...)...)
	go env.fdb.serve()

	t.Cleanup(func() {
		_ = env.session.Close()
		_ = p.stdoutW.Close()
		_ = p.stdinR.Close()
	})
	return env
}

// start starts the session and waits until the player runs.
func (e *testEnv) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, e.session.Start(ctx))
	e.waitState(t, StateRunning)
}

func (e *testEnv) waitState(t *testing.T, want SessionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.session.State() == want
	}, testTimeout, testTick, "state %s", want)
}

// hitBreakpoint runs the player into fdb breakpoint index and returns the
// reported hit.
func (e *testEnv) hitBreakpoint(t *testing.T, index, line int) hitEvent {
	t.Helper()
	e.fdb.hit(index, line)
	select {
	case h := <-e.reporter.hits:
		return h
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for breakpoint hit")
	}
	return hitEvent{}
}

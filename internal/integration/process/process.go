package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Names of the processes a debug session runs.
const (
	FDBName    = "fdb"
	PlayerName = "player"
)

// DefaultCloseGrace is how long Close waits for the process to exit on its
// own after stdin is closed.
const DefaultCloseGrace = 2 * time.Second

// Process is a supervised child process: fdb itself or the player.
//
// A Process started with piped stdio serves as the debug session's
// transport. Close ends the conversation: stdin is closed first so fdb can
// exit on EOF, and the process is killed if it is still alive after the
// grace period.
type Process struct {
	// ID is the unique identifier for this process.
	ID string

	// Name is a human-readable name ("fdb", "player").
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Started is the time the process was started.
	Started time.Time

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	closeGrace time.Duration

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error
	exited  time.Time

	waitOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewProcess creates a new Process wrapping the given command.
//
// The command should not be started before calling NewProcess.
// Use Supervisor.Start to start the process with proper tracking.
func NewProcess(id, name string, cmd *exec.Cmd) *Process {
	p := &Process{
		ID:         id,
		Name:       name,
		Cmd:        cmd,
		closeGrace: DefaultCloseGrace,
		done:       make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)
	return p
}

// Stdin returns the write end of the process' stdin, or nil if it was not
// piped.
func (p *Process) Stdin() io.Writer {
	if p.stdin == nil {
		return nil
	}
	return p.stdin
}

// Stdout returns the read end of the process' stdout, or nil if it was not
// piped.
func (p *Process) Stdout() io.Reader {
	if p.stdout == nil {
		return nil
	}
	return p.stdout
}

// Stderr returns the read end of the process' stderr, or nil if it was not
// piped.
func (p *Process) Stderr() io.Reader {
	if p.stderr == nil {
		return nil
	}
	return p.stderr
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the process exit code.
// Returns -1 if the process has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// HasExited returns true if the process has exited (normally or killed).
func (p *Process) HasExited() bool {
	state := p.State()
	return state == StateExited || state == StateKilled
}

// PID returns the process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Signal sends a signal to the process.
func (p *Process) Signal(sig os.Signal) error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return fmt.Errorf("%s: %w", p.Name, ErrProcessNotStarted)
	}
	return p.Cmd.Process.Signal(sig)
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Terminate sends SIGTERM to the process.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}

	if err := p.Cmd.Start(); err != nil {
		return err
	}

	p.Started = time.Now()
	p.state.Store(int32(StateRunning))

	go p.waitLoop()

	return nil
}

func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.Cmd.Wait()

		p.mu.Lock()
		p.exitErr = err
		p.exited = time.Now()
		p.mu.Unlock()

		exitCode := 0
		state := StateExited

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					state = StateKilled
				}
			} else {
				exitCode = -1
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.state.Store(int32(state))
		close(p.done)
	})
}

// Close closes stdin, waits up to the close grace period for the process
// to exit and kills it otherwise. Stdout and stderr are closed last so
// readers blocked on them return. Close is idempotent.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		var errs []error

		if p.stdin != nil {
			if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, fmt.Errorf("close stdin: %w", err))
			}
		}

		if p.IsRunning() {
			select {
			case <-p.done:
			case <-time.After(p.closeGrace):
				if err := p.Kill(); err != nil && p.IsRunning() {
					errs = append(errs, fmt.Errorf("kill %s: %w", p.Name, err))
				}
				<-p.done
			}
		}

		for name, c := range map[string]io.Closer{"stdout": p.stdout, "stderr": p.stderr} {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}

		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// Runtime returns how long the process has been running, or how long it
// ran once it has exited.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	p.mu.RLock()
	exited := p.exited
	p.mu.RUnlock()
	if !exited.IsZero() {
		return exited.Sub(p.Started)
	}
	return time.Since(p.Started)
}

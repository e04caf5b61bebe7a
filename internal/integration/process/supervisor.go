package process

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Supervisor owns the subprocesses of one debug session.
//
// Besides lifecycle tracking it remembers which binaries it already made
// executable, so the fixup runs once per session instead of once per
// process-wide lifetime.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*Process

	execMu     sync.Mutex
	executable map[string]struct{}

	shutdown chan struct{}
	closed   atomic.Bool

	logger        *slog.Logger
	closeGrace    time.Duration
	onProcessExit func(p *Process)
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithLogger sets the logger used for process lifecycle messages.
func WithLogger(l *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCloseGrace sets how long a process may take to exit after its stdin
// is closed.
func WithCloseGrace(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.closeGrace = d
	}
}

// WithProcessExitCallback sets a callback for when processes exit.
func WithProcessExitCallback(fn func(p *Process)) SupervisorOption {
	return func(s *Supervisor) {
		s.onProcessExit = fn
	}
}

// NewSupervisor creates a new process supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		processes:  make(map[string]*Process),
		executable: make(map[string]struct{}),
		shutdown:   make(chan struct{}),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		closeGrace: DefaultCloseGrace,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start starts a new managed process under a fresh id.
//
// The command's stdin, stdout and stderr are piped unless already
// configured. A failed start is returned as a *LaunchError.
func (s *Supervisor) Start(name string, cmd *exec.Cmd) (*Process, error) {
	return s.StartWithID(uuid.NewString(), name, cmd)
}

// StartWithID starts a new managed process with a specific ID.
func (s *Supervisor) StartWithID(id, name string, cmd *exec.Cmd) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}
	if _, exists := s.processes[id]; exists {
		return nil, fmt.Errorf("process ID already exists: %s", id)
	}

	proc := NewProcess(id, name, cmd)
	proc.closeGrace = s.closeGrace

	fail := func(err error) (*Process, error) {
		for _, c := range []io.Closer{proc.stdin, proc.stdout, proc.stderr} {
			if c != nil {
				_ = c.Close()
			}
		}
		s.logger.Error("process launch failed", "name", name, "path", cmd.Path, "error", err)
		return nil, &LaunchError{Name: name, CommandLine: commandLine(cmd), Err: err}
	}

	if cmd.Stdin == nil {
		w, err := cmd.StdinPipe()
		if err != nil {
			return fail(fmt.Errorf("create stdin pipe: %w", err))
		}
		proc.stdin = w
	}
	// Output pipes are created here rather than with StdoutPipe so that
	// Wait does not close them before the last bytes are read.
	var childEnds []*os.File
	if cmd.Stdout == nil {
		r, w, err := os.Pipe()
		if err != nil {
			return fail(fmt.Errorf("create stdout pipe: %w", err))
		}
		cmd.Stdout, proc.stdout = w, r
		childEnds = append(childEnds, w)
	}
	if cmd.Stderr == nil {
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(childEnds)
			return fail(fmt.Errorf("create stderr pipe: %w", err))
		}
		cmd.Stderr, proc.stderr = w, r
		childEnds = append(childEnds, w)
	}

	err := proc.start()
	closeAll(childEnds)
	if err != nil {
		return fail(err)
	}

	s.processes[id] = proc
	s.logger.Debug("process started", "name", name, "id", id, "pid", proc.PID())

	go s.monitorProcess(proc)

	return proc, nil
}

// StartFDB starts fdb from path with args. A path naming a file is made
// executable first; a bare name is looked up in PATH.
func (s *Supervisor) StartFDB(path string, args ...string) (*Process, error) {
	var resolved string
	if strings.ContainsRune(path, os.PathSeparator) || strings.ContainsRune(path, '/') {
		abs, err := filepath.Abs(path)
		if err == nil {
			err = s.EnsureExecutable(abs)
		}
		if err != nil {
			return nil, &LaunchError{Name: FDBName, CommandLine: append([]string{path}, args...), Err: err}
		}
		resolved = abs
	} else {
		p, err := exec.LookPath(path)
		if err != nil {
			return nil, &LaunchError{Name: FDBName, CommandLine: append([]string{path}, args...), Err: err}
		}
		resolved = p
	}

	cmd := exec.Command(resolved, args...)
	cmd.Dir = filepath.Dir(resolved)
	return s.Start(FDBName, cmd)
}

// EnsureExecutable adds execute permission to path unless this supervisor
// already did so. It is a no-op on Windows.
func (s *Supervisor) EnsureExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	if _, done := s.executable[abs]; done {
		return nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0o111 != 0o111 {
		if err := os.Chmod(abs, mode|0o111); err != nil {
			return fmt.Errorf("make executable: %w", err)
		}
		s.logger.Debug("made executable", "path", abs)
	}
	s.executable[abs] = struct{}{}
	return nil
}

func (s *Supervisor) monitorProcess(proc *Process) {
	<-proc.Done()

	s.logger.Debug("process exited", "name", proc.Name, "id", proc.ID, "code", proc.ExitCode())

	if s.onProcessExit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("process exit callback panicked", "name", proc.Name, "panic", r)
				}
			}()
			s.onProcessExit(proc)
		}()
	}

	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()
}

// Get returns a process by ID, or nil.
func (s *Supervisor) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// List returns all managed processes.
func (s *Supervisor) List() []*Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		result = append(result, p)
	}
	return result
}

// Count returns the number of managed processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// Kill kills a process by ID.
func (s *Supervisor) Kill(id string) error {
	proc := s.Get(id)
	if proc == nil {
		return ErrProcessNotFound
	}
	if !proc.IsRunning() {
		return nil
	}
	return proc.Kill()
}

// Shutdown ends all processes: SIGTERM first, SIGKILL for whatever is
// still running after timeout. It blocks until every process is gone.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}
	close(s.shutdown)

	procs := s.List()
	if len(procs) == 0 {
		return
	}

	for _, p := range procs {
		if p.IsRunning() {
			_ = p.Terminate()
		}
	}

	done := make(chan struct{})
	go func() {
		for _, p := range procs {
			<-p.Done()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		for _, p := range procs {
			if p.IsRunning() {
				s.logger.Warn("killing process after shutdown timeout", "name", p.Name)
				_ = p.Kill()
			}
		}
		<-done
	}

	for s.Count() > 0 {
		time.Sleep(time.Millisecond)
	}
}

// IsShuttingDown returns true if the supervisor is shutting down.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}

// ShutdownChan returns a channel that is closed when shutdown begins.
func (s *Supervisor) ShutdownChan() <-chan struct{} {
	return s.shutdown
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func commandLine(cmd *exec.Cmd) []string {
	if len(cmd.Args) > 0 {
		return cmd.Args
	}
	return []string{cmd.Path}
}

package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForCount(t *testing.T, s *Supervisor, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Count() == want },
		2*time.Second, 5*time.Millisecond, "expected %d processes", want)
}

func TestSupervisor_Start(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	proc, err := s.Start("sleep", exec.Command("sleep", "10"))
	require.NoError(t, err)

	assert.NotEmpty(t, proc.ID, "generated ID")
	assert.Same(t, proc, s.Get(proc.ID))
	assert.Equal(t, 1, s.Count())
	assert.Len(t, s.List(), 1)
}

func TestSupervisor_StartWithID_Duplicate(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	_, err := s.StartWithID("fdb-1", FDBName, exec.Command("sleep", "10"))
	require.NoError(t, err)
	_, err = s.StartWithID("fdb-1", FDBName, exec.Command("sleep", "10"))
	assert.Error(t, err, "duplicate ID")
}

func TestSupervisor_StartFailure(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	_, err := s.Start(FDBName, exec.Command("/nonexistent/fdb", "-unit"))
	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, FDBName, le.Name)
	assert.Contains(t, le.Error(), "/nonexistent/fdb -unit")
	assert.Zero(t, s.Count(), "failed start must not be tracked")
}

func TestSupervisor_ProcessExitCallback(t *testing.T) {
	var exited atomic.Value
	s := NewSupervisor(WithProcessExitCallback(func(p *Process) {
		exited.Store(p.Name)
		panic("callback panics are contained")
	}))
	defer s.Shutdown(time.Second)

	_, err := s.Start(PlayerName, exec.Command("true"))
	require.NoError(t, err)
	waitForCount(t, s, 0)

	assert.Equal(t, PlayerName, exited.Load())
}

func TestSupervisor_Kill(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	proc, err := s.Start("sleep", exec.Command("sleep", "10"))
	require.NoError(t, err)
	require.NoError(t, s.Kill(proc.ID))

	select {
	case <-proc.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after Kill")
	}

	assert.ErrorIs(t, s.Kill("missing"), ErrProcessNotFound)
}

func TestSupervisor_Shutdown(t *testing.T) {
	s := NewSupervisor()
	assert.False(t, s.IsShuttingDown())

	for i := 0; i < 2; i++ {
		_, err := s.Start("sleep", exec.Command("sleep", "10"))
		require.NoError(t, err)
	}

	s.Shutdown(time.Second)

	assert.Zero(t, s.Count())
	assert.True(t, s.IsShuttingDown())
	select {
	case <-s.ShutdownChan():
	default:
		t.Error("shutdown channel should be closed")
	}

	// Idempotent.
	s.Shutdown(time.Second)

	_, err := s.Start("late", exec.Command("true"))
	assert.ErrorIs(t, err, ErrSupervisorShutdown)
}

func TestSupervisor_ShutdownTimeout(t *testing.T) {
	s := NewSupervisor()

	cmd := exec.Command("sh", "-c", "trap '' TERM; sleep 10")
	_, err := s.Start("stubborn", cmd)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	s.Shutdown(100 * time.Millisecond)

	assert.Zero(t, s.Count())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSupervisor_EnsureExecutable(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fdb")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o644))

	perm := func() os.FileMode {
		info, err := os.Stat(script)
		require.NoError(t, err)
		return info.Mode().Perm() & 0o111
	}

	s := NewSupervisor()
	require.NoError(t, s.EnsureExecutable(script))
	assert.Equal(t, os.FileMode(0o111), perm())

	// Remembered for this supervisor only.
	require.NoError(t, os.Chmod(script, 0o644))
	require.NoError(t, s.EnsureExecutable(script))
	assert.Zero(t, perm(), "second call on the same supervisor is a no-op")

	require.NoError(t, NewSupervisor().EnsureExecutable(script))
	assert.Equal(t, os.FileMode(0o111), perm(), "a fresh supervisor fixes the file again")

	assert.Error(t, s.EnsureExecutable(filepath.Join(dir, "missing")))
}

func TestSupervisor_StartFDB(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fdb")
	body := "#!/bin/sh\necho 'Adobe fdb (Flash Player Debugger)'\nprintf '(fdb) '\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o644))

	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	proc, err := s.StartFDB(script)
	require.NoError(t, err)
	assert.Equal(t, FDBName, proc.Name)
	<-proc.Done()

	buf := make([]byte, 64)
	n, _ := proc.Stdout().Read(buf)
	assert.True(t, strings.HasPrefix(string(buf[:n]), "Adobe fdb"), "greeting %q", buf[:n])
}

func TestSupervisor_StartFDBNotFound(t *testing.T) {
	s := NewSupervisor()

	_, err := s.StartFDB("fdb-definitely-not-installed", "-p")
	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "fdb-definitely-not-installed -p", strings.Join(le.CommandLine, " "))
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestPlayerLauncher(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	l := &PlayerLauncher{Supervisor: s, Command: "sh", Args: []string{"-c", "exit 0"}, URL: "Main.swf"}
	name, args := l.commandLine()
	assert.Equal(t, "sh", name)
	assert.Equal(t, []string{"-c", "exit 0", "Main.swf"}, args)

	require.NoError(t, l.LaunchPlayer(context.Background()))
	assert.Len(t, l.Args, 2, "launching must not modify Args")
}

func TestPlayerLauncherNothingConfigured(t *testing.T) {
	l := &PlayerLauncher{Supervisor: NewSupervisor()}

	assert.ErrorIs(t, l.LaunchPlayer(context.Background()), ErrNothingToLaunch)
}

func TestPlayerLauncherCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &PlayerLauncher{Supervisor: NewSupervisor(), Command: "true"}
	assert.ErrorIs(t, l.LaunchPlayer(ctx), context.Canceled)
}

package debug

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestSessionStartWaitsForPlayer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)

	env.fdb.expect("run", "continue")
	assert.Equal(t, StateRunning, env.session.State())
	assert.True(t, env.console.contains("Waiting for the player to be started"))
	assert.True(t, env.console.contains("[SWF] /proj/bin/Main.swf"))
	assert.False(t, env.console.contains("type 'continue'"))
	assert.NotEmpty(t, env.session.ID())
}

func TestSessionStartLaunchesPlayer(t *testing.T) {
	var calls atomic.Int32
	launched := make(chan struct{})
	env := newTestEnv(t, func(f *fakeFDB) {
		f.launched = launched
	}, WithPlayerLauncher(launcherFunc(func(context.Context) error {
		calls.Add(1)
		close(launched)
		return nil
	})))
	env.start(t)

	env.fdb.expect("run", "continue")
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, env.console.contains("Waiting for the player to be started"))
}

func TestSessionStartLauncherError(t *testing.T) {
	env := newTestEnv(t, nil, WithPlayerLauncher(launcherFunc(func(context.Context) error {
		return errors.New("no player installed")
	})))

	err := env.session.Start(testContext(t))
	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.Contains(t, err.Error(), "no player installed")
	assert.Equal(t, StateTerminated, env.session.State())
}

func TestSessionStartConnectFailure(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.handler = func(f *fakeFDB, cmd string) bool {
			if cmd != "run" {
				return false
			}
			f.prompt("Failed to connect; session timed out.\nEnsure that:\n1. you compiled your Flash movie with debugging on")
			return true
		}
	})

	err := env.session.Start(testContext(t))
	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.Contains(t, err.Error(), "Failed to connect")
}

func TestSessionPlayerExitDuringStartup(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.handler = func(f *fakeFDB, cmd string) bool {
			if cmd != "run" {
				return false
			}
			f.write("Waiting for Player to connect\n")
			f.write("Player session terminated\n")
			_ = f.out.Close()
			return true
		}
	})

	err := env.session.Start(testContext(t))
	require.ErrorIs(t, err, ErrLaunchFailed)

	select {
	case derr := <-env.reporter.detached:
		assert.ErrorIs(t, derr, ErrLaunchFailed)
	case <-time.After(testTimeout):
		t.Fatal("session not detached")
	}
}

func TestSessionStartCanceled(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.handler = func(f *fakeFDB, cmd string) bool {
			// The player never connects.
			return cmd == "run"
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := env.session.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, env.session.Err(), context.DeadlineExceeded)
	assert.Equal(t, StateTerminated, env.session.State())
}

func TestSessionStartTwice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)

	assert.ErrorIs(t, env.session.Start(testContext(t)), ErrAlreadyStarted)
}

func TestSessionBreakpointsBeforeStart(t *testing.T) {
	env := newTestEnv(t, nil)
	bp := NewBreakpoint("/proj/src/Main.as", 10)
	require.NoError(t, env.session.RegisterBreakpoint(bp))

	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	infos := env.session.Breakpoints()
	require.Len(t, infos, 1)
	assert.Same(t, bp, infos[0].Breakpoint)
	assert.Equal(t, 1, infos[0].Index)
	assert.Equal(t, BreakpointVerified, infos[0].Status)
}

func TestSessionBreakpointWhileRunning(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.fdb.expect("run", "continue")

	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))

	env.fdb.expect("suspend", "y", "break Main.as:11", "continue")
	env.waitState(t, StateRunning)
}

func TestSessionBreakpointUnresolved(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("break Lazy.as:5", "Breakpoint 1 created, but not yet resolved.\nThe breakpoint will be resolved when the corresponding file or function is loaded.")
	})
	bp := NewBreakpoint("/proj/src/Lazy.as", 4)
	require.NoError(t, env.session.RegisterBreakpoint(bp))

	env.start(t)
	env.fdb.expect("run", "break Lazy.as:5", "continue")

	infos := env.session.Breakpoints()
	require.Len(t, infos, 1)
	assert.Equal(t, BreakpointRegistered, infos[0].Status)

	// fdb resolves it once the code is loaded.
	env.fdb.write("Resolved breakpoint 1 to init() at Lazy.as:5\n")
	require.Eventually(t, func() bool {
		return env.session.Breakpoints()[0].Status == BreakpointVerified
	}, testTimeout, testTick)
}

func TestSessionBreakpointRejected(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("break Gone.as:3", "No source file named Gone.as.")
	})
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Gone.as", 2)))

	env.start(t)
	env.fdb.expect("run", "break Gone.as:3", "continue")

	infos := env.session.Breakpoints()
	require.Len(t, infos, 1)
	assert.Equal(t, BreakpointInvalid, infos[0].Status)
	assert.Equal(t, "No source file named Gone.as.", infos[0].Message)
	assert.True(t, env.console.contains("No source file named Gone.as."))
}

func TestSessionBreakpointAmbiguousRetriedByID(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("break Main.as:11", "Ambiguous matching file names:\n #1: Main.as\n #7: Main.as")
	})
	bp := NewBreakpoint("/proj/src/Main.as", 10)
	require.NoError(t, env.session.RegisterBreakpoint(bp))

	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "show files", "break #1:11", "continue")

	infos := env.session.Breakpoints()
	require.Len(t, infos, 1)
	assert.Equal(t, BreakpointVerified, infos[0].Status)
	assert.Equal(t, 1, infos[0].Index)
}

func TestSessionBreakpointOutsideProjectSkipped(t *testing.T) {
	files := &fakeProjectFiles{
		paths: map[string]string{"/proj/src/com/acme/Util.as": "com.acme"},
	}
	env := newTestEnv(t, nil, WithScope(ProjectScope{Files: files}))
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/lib/src/com/acme/Util.as", 3)))

	env.start(t)
	env.fdb.expect("run", "continue")
	assert.Empty(t, env.session.Breakpoints())
}

func TestSessionUnregisterBreakpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	bp := NewBreakpoint("/proj/src/Main.as", 10)
	require.NoError(t, env.session.RegisterBreakpoint(bp))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	require.NoError(t, env.session.UnregisterBreakpoint(bp))
	env.fdb.expect("suspend", "y", "delete 1", "continue")

	require.Eventually(t, func() bool {
		return len(env.session.Breakpoints()) == 0
	}, testTimeout, testTick)
}

func TestSessionBreakpointHit(t *testing.T) {
	env := newTestEnv(t, nil)
	bp := NewBreakpoint("/proj/src/Main.as", 10)
	require.NoError(t, env.session.RegisterBreakpoint(bp))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	hit := env.hitBreakpoint(t, 1, 11)
	assert.Same(t, bp, hit.bp)
	assert.Empty(t, hit.msg)

	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)

	top := env.session.TopFrame()
	require.NotNil(t, top)
	require.Eventually(t, func() bool {
		return hit.sc.TopFrame().Scope() == "init: Main"
	}, testTimeout, testTick)
	top = hit.sc.TopFrame()
	assert.Equal(t, Position{File: "/proj/src/Main.as", Line: 10}, top.Position())
	assert.True(t, top.Resolved())
	assert.False(t, top.Stale())
	assert.Same(t, hit.sc, env.session.SuspendContext())

	frames, err := env.session.Frames(testContext(t))
	require.NoError(t, err)
	env.fdb.expect("bt")
	require.Len(t, frames, 2)
	assert.Equal(t, "start: Main", frames[1].Scope())
	assert.Equal(t, Position{File: "/proj/src/Main.as", Line: 29}, frames[1].Position())
	assert.Len(t, hit.sc.Frames(), 2)

	require.NoError(t, env.session.Resume())
	env.fdb.expect("continue")
	env.waitState(t, StateRunning)
	assert.True(t, top.Stale())
	assert.Nil(t, env.session.TopFrame())
}

func TestSessionLogPointDoesNotSuspend(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("print name", `name = "Alice"`)
	})
	bp := NewBreakpoint("/proj/src/Main.as", 10)
	bp.LogMessage = "name"
	bp.Suspend = false
	require.NoError(t, env.session.RegisterBreakpoint(bp))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	hit := env.hitBreakpoint(t, 1, 11)
	assert.Equal(t, "Alice", hit.msg)

	env.fdb.expect("frame", "print name", "continue")
	assert.Empty(t, env.fdb.drain())
	assert.True(t, env.console.contains("normal: Alice"))
	env.waitState(t, StateRunning)
}

func TestSessionSuspendingHitWinsOverLogPoint(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("print name", `name = "Alice"`)
	})
	logPoint := NewBreakpoint("/proj/src/Main.as", 10)
	logPoint.LogMessage = "name"
	logPoint.Suspend = false
	stop := NewBreakpoint("/proj/src/Main.as", 20)
	require.NoError(t, env.session.RegisterBreakpoint(logPoint))
	require.NoError(t, env.session.RegisterBreakpoint(stop))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "break Main.as:21", "continue")

	env.fdb.running.Store(false)
	env.fdb.prompt("Breakpoint 1, init() at Main.as:11\nBreakpoint 2, init() at Main.as:21\n 21     trace(\"hit\");")

	first := <-env.reporter.hits
	assert.Same(t, logPoint, first.bp)
	second := <-env.reporter.hits
	assert.Same(t, stop, second.bp)

	env.fdb.expect("frame", "print name", "bt")
	env.waitState(t, StateSuspended)
	assert.NotContains(t, env.fdb.drain(), "continue")
}

func TestSessionConditionFalseContinues(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("print x > 1", "$1 = false")
	})
	bp := NewBreakpoint("/proj/src/Main.as", 10)
	bp.Condition = "x > 1"
	require.NoError(t, env.session.RegisterBreakpoint(bp))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	env.fdb.hit(1, 11)
	env.fdb.expect("frame", "print x > 1", "continue")
	assert.Empty(t, env.reporter.hits)
}

func TestSessionConditionErrorSuspends(t *testing.T) {
	env := newTestEnv(t, nil)
	bp := NewBreakpoint("/proj/src/Main.as", 10)
	bp.Condition = "missing"
	require.NoError(t, env.session.RegisterBreakpoint(bp))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	hit := env.hitBreakpoint(t, 1, 11)
	assert.Same(t, bp, hit.bp)
	env.fdb.expect("frame", "print missing", "bt")
	assert.True(t, env.console.contains(`Breakpoint condition "missing" failed`))
}

func TestSessionReporterVetoContinues(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reporter.verdict = func(*Breakpoint) bool { return false }
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("continue")
	env.waitState(t, StateRunning)
	assert.Nil(t, env.session.SuspendContext())
}

func TestSessionRunToPosition(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.fdb.expect("run", "continue")

	require.NoError(t, env.session.RunToPosition(Position{File: "/proj/src/Main.as", Line: 20}))
	env.fdb.expect("suspend", "y", "break Main.as:21", "continue")

	// The temporary breakpoint is unknown to the session.
	env.fdb.hit(1, 21)
	select {
	case sc := <-env.reporter.positions:
		assert.Equal(t, "init: Main", sc.TopFrame().Scope())
	case <-time.After(testTimeout):
		t.Fatal("position not reported")
	}
	env.fdb.expect("bt", "show files", "delete 1")
	assert.Empty(t, env.reporter.hits)
}

func TestSessionPause(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.fdb.expect("run", "continue")

	require.NoError(t, env.session.Pause())
	env.fdb.expect("suspend", "y", "bt", "show files")

	select {
	case sc := <-env.reporter.positions:
		require.Len(t, sc.Frames(), 2)
		assert.Equal(t, Position{File: "/proj/src/Main.as", Line: 10}, sc.TopFrame().Position())
	case <-time.After(testTimeout):
		t.Fatal("position not reported")
	}
	env.waitState(t, StateSuspended)
}

func TestSessionStepRequiresSuspended(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)

	assert.ErrorIs(t, env.session.StepOver(), ErrNotSuspended)
	assert.ErrorIs(t, env.session.StepInto(), ErrNotSuspended)
	assert.ErrorIs(t, env.session.StepOut(), ErrNotSuspended)
	_, err := env.session.Frames(testContext(t))
	assert.ErrorIs(t, err, ErrNotSuspended)
	_, err = env.session.Evaluate(testContext(t), "x")
	assert.ErrorIs(t, err, ErrNotSuspended)
}

func TestSessionStepOver(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")

	hit := env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)
	before := hit.sc.TopFrame()

	require.NoError(t, env.session.StepOver())
	env.fdb.expect("next", "bt")

	select {
	case sc := <-env.reporter.positions:
		assert.NotSame(t, hit.sc, sc)
		assert.False(t, sc.TopFrame().Stale())
	case <-time.After(testTimeout):
		t.Fatal("position not reported")
	}
	assert.True(t, before.Stale())
}

func TestSessionEvaluate(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("print count", "count = 5")
		f.reply("print greeting", `greeting = "say \"hi\""`)
	})
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")
	env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)

	v, err := env.session.Evaluate(testContext(t), "count")
	require.NoError(t, err)
	env.fdb.expect("frame", "print count")
	assert.Equal(t, "5", v.Result)
	assert.False(t, v.Failed())

	v, err = env.session.Evaluate(testContext(t), "greeting")
	require.NoError(t, err)
	env.fdb.expect("frame", "print greeting")
	assert.Equal(t, `"say \"hi\""`, v.Result)
}

func TestSessionEvaluateAssignment(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("print count", "count = 7")
	})
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")
	env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)

	v, err := env.session.Evaluate(testContext(t), "count = 7")
	require.NoError(t, err)
	env.fdb.expect("frame", "set count = 7", "print count")
	assert.Equal(t, "7", v.Result)
}

func TestSessionEvaluateFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")
	env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)

	v, err := env.session.Evaluate(testContext(t), "missing")
	require.NoError(t, err)
	env.fdb.expect("frame", "print missing", "info scopechain")
	assert.True(t, v.Failed())
	assert.Equal(t, value.CannotEvaluatePrefix+"missing", v.Result)
}

func TestSessionEvaluateStaticThroughScopeChain(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("info scopechain", "Scope chain:\n0 = [Object 100, class='Main']\n1 = [Object 12, class='com.acme::Config$']")
		f.reply("print #12.DEBUG", "#12.DEBUG = true")
	})
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")
	env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)

	v, err := env.session.Evaluate(testContext(t), "Config.DEBUG")
	require.NoError(t, err)
	env.fdb.expect("frame", "print Config.DEBUG", "info scopechain", "frame", "print #12.DEBUG")
	assert.Equal(t, "true", v.Result)
}

func TestSessionEvaluateObsoleteNeverPosted(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")
	hit := env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)

	got := make(chan value.Result, 1)
	hit.sc.TopFrame().context().Evaluate(value.Request{
		Expression: "count",
		Obsolete:   func() bool { return true },
		Done:       func(r value.Result) { got <- r },
	})

	select {
	case r := <-got:
		assert.ErrorIs(t, r.Err, value.ErrObsolete)
	case <-time.After(testTimeout):
		t.Fatal("obsolete request not completed")
	}
	assert.Empty(t, env.fdb.drain())
}

func TestSessionFrameChildren(t *testing.T) {
	env := newTestEnv(t, func(f *fakeFDB) {
		f.reply("print this", "$1 = [Object 100, class='Main']")
		f.reply("info arguments", "n = 1")
		f.reply("info locals", "count = 5\nname = \"Alice\"")
	})
	require.NoError(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 10)))
	env.start(t)
	env.fdb.expect("run", "break Main.as:11", "continue")
	hit := env.hitBreakpoint(t, 1, 11)
	env.fdb.expect("bt", "show files")
	env.waitState(t, StateSuspended)

	children, err := hit.sc.TopFrame().Children(testContext(t))
	require.NoError(t, err)
	env.fdb.expect("frame", "print this", "info arguments", "info locals", "info scopechain")

	var names []string
	kinds := make(map[string]value.Kind)
	for _, c := range children {
		names = append(names, c.Name)
		kinds[c.Name] = c.Value.Kind
	}
	assert.Equal(t, []string{"this", "n", "count", "name"}, names)
	assert.Equal(t, value.KindThis, kinds["this"])
	assert.Equal(t, value.KindParameter, kinds["n"])
	assert.Equal(t, value.KindVariable, kinds["count"])
}

func TestSessionTraceOutput(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.fdb.expect("run", "continue")

	env.fdb.write("[trace] hello from the player\n")
	require.Eventually(t, func() bool {
		return env.console.contains("normal: [trace] hello from the player")
	}, testTimeout, testTick)
}

func TestSessionFaultOutput(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.fdb.expect("run", "continue")

	env.fdb.prompt("[Fault] exception, information=TypeError: Error #1009\nat Main/init()[/proj/src/Main.as:11]")
	require.Eventually(t, func() bool {
		return env.console.contains("\tat Main/init()")
	}, testTimeout, testTick)
	assert.True(t, env.console.contains("system: [Fault] exception"))
}

func TestSessionTransportFailureReportedOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.fdb.expect("run", "continue")

	_ = env.fdb.out.Close()

	select {
	case <-env.session.Done():
	case <-time.After(testTimeout):
		t.Fatal("session did not end")
	}
	require.ErrorIs(t, env.session.Err(), fdb.ErrTransportClosed)
	assert.Equal(t, StateTerminated, env.session.State())

	derr := <-env.reporter.detached
	assert.ErrorIs(t, derr, fdb.ErrTransportClosed)

	assert.ErrorIs(t, env.session.RegisterBreakpoint(NewBreakpoint("/proj/src/Main.as", 1)), ErrSessionTerminated)
	assert.ErrorIs(t, env.session.Resume(), ErrSessionTerminated)

	require.NoError(t, env.session.Close())
	assert.Equal(t, int32(1), env.reporter.detaches.Load())
}

func TestSessionPendingRequestFailsOnTermination(t *testing.T) {
	var drop atomic.Bool
	env := newTestEnv(t, func(f *fakeFDB) {
		f.handler = func(f *fakeFDB, cmd string) bool {
			if cmd != "bt" || !drop.Load() {
				return false
			}
			// The connection drops while the stack is dumped.
			_ = f.out.Close()
			return true
		}
	})
	env.start(t)
	env.fdb.expect("run", "continue")

	require.NoError(t, env.session.Pause())
	env.fdb.expect("suspend", "y", "bt", "show files")
	<-env.reporter.positions
	env.waitState(t, StateSuspended)

	drop.Store(true)
	_, err := env.session.Frames(testContext(t))
	require.ErrorIs(t, err, ErrSessionTerminated)

	<-env.session.Done()
	assert.ErrorIs(t, env.session.Err(), fdb.ErrTransportClosed)
}

func TestSessionQuit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.fdb.expect("run", "continue")

	require.NoError(t, env.session.Quit(testContext(t)))
	env.fdb.expect("suspend", "y", "quit", "y")

	assert.NoError(t, env.session.Err())
	assert.Equal(t, StateTerminated, env.session.State())
	select {
	case derr := <-env.reporter.detached:
		assert.NoError(t, derr)
	case <-time.After(testTimeout):
		t.Fatal("session not detached")
	}
}

func TestSessionQuitBeforeStartup(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, env.session.Quit(testContext(t)))
	assert.Equal(t, StateTerminated, env.session.State())
	assert.ErrorIs(t, env.session.Start(testContext(t)), ErrSessionTerminated)
}

func TestSessionCharset(t *testing.T) {
	env := newTestEnv(t, nil, WithCharset(charmap.ISO8859_1))
	env.start(t)

	env.fdb.expect("run", "continue")
	assert.True(t, env.console.contains("[SWF] /proj/bin/Main.swf"))
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateSuspended, "suspended"},
		{StateTerminated, "terminated"},
		{SessionState(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

type fakeProjectFiles struct {
	paths map[string]string // path to package
}

func (f *fakeProjectFiles) Contains(path string) bool {
	_, ok := f.paths[path]
	return ok
}

func (f *fakeProjectFiles) FilesByName(name string) []string {
	var out []string
	for p := range f.paths {
		if strings.HasSuffix(p, "/"+name) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeProjectFiles) PackageOf(path string) (string, bool) {
	pkg, ok := f.paths[path]
	return pkg, ok
}

// Package debug drives an fdb (Flex/ActionScript debugger) subprocess.
//
// fdb speaks unframed text over stdio: commands are single lines and
// responses end at a prompt. Responses carry no request id, so correctness
// depends on strict ordering and on knowing whether the player is running
// or halted when each command is sent.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                          Session                                 │
//	│  - Facade: breakpoints, stepping, evaluation, frames            │
//	│  - Callers only enqueue commands                                │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                        Dispatcher                                │
//	│  - One goroutine owns fdb's stdin and stdout                    │
//	│  - Brackets commands with suspend/continue as needed            │
//	│  - Scans unsolicited output: hits, trace, loaded code           │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                     fdb subprocess (Transport)                   │
//	└─────────────────────────────────────────────────────────────────┘
//
// A second goroutine drains fdb's stderr to the console and a timer
// enqueues an output drain while the player runs.
//
// # Session States
//
//   - Starting: greeting and "run" handshake in progress
//   - Running: the player executes ActionScript
//   - Suspended: the player is halted; frames and values may be inspected
//   - Terminated: the session has ended
//
// # Usage
//
//	s := debug.NewSession(transport,
//	    debug.WithConsole(console),
//	    debug.WithReporter(reporter),
//	    debug.WithPlayerLauncher(launcher),
//	)
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	bp := debug.NewBreakpoint("/proj/src/Main.as", 41)
//	_ = s.RegisterBreakpoint(bp)
//
//	// After the reporter sees the hit:
//	v, err := s.Evaluate(ctx, "this.name")
//
// # Subpackages
//
//   - fdb: line reader, response classifier, command model and queue
//   - value: value tree built from fdb's printed values
//   - files: fdb file ids and source file resolution
package debug

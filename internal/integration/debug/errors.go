package debug

import "errors"

var (
	// ErrSessionTerminated is returned for requests made after the session ended.
	ErrSessionTerminated = errors.New("debug session terminated")

	// ErrNotSuspended is returned when an operation needs a halted player.
	ErrNotSuspended = errors.New("player is not suspended")

	// ErrBreakpointNotFound is returned for unknown breakpoint ids.
	ErrBreakpointNotFound = errors.New("breakpoint not found")

	// ErrLaunchFailed is returned when fdb could not connect to the player.
	ErrLaunchFailed = errors.New("launch failed")

	// ErrFrameStale is returned when a frame is used after the player resumed.
	ErrFrameStale = errors.New("stack frame is no longer valid")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session already started")
)

package process

import (
	"errors"
	"strings"
)

var (
	// ErrProcessNotStarted is returned when operations require a started process.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted is returned when trying to start an already running process.
	ErrProcessAlreadyStarted = errors.New("process already started")

	// ErrProcessNotFound is returned when a process ID is not found.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSupervisorShutdown is returned when the supervisor is shutting down.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")

	// ErrNothingToLaunch is returned by a player launcher with neither a
	// command nor a URL.
	ErrNothingToLaunch = errors.New("no player command or url configured")
)

// LaunchError reports a subprocess that could not be started.
type LaunchError struct {
	// Name is the role of the process ("fdb", "player").
	Name string
	// CommandLine is the program followed by its arguments.
	CommandLine []string
	// Err is the underlying cause.
	Err error
}

func (e *LaunchError) Error() string {
	return "launch " + e.Name + " (" + strings.Join(e.CommandLine, " ") + "): " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

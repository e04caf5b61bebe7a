package hook

import "errors"

var (
	// ErrStateClosed is returned when calling into a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNoFunction is returned when a called global is not a function.
	ErrNoFunction = errors.New("not a lua function")
)

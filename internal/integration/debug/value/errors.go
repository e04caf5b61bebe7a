package value

import "errors"

// ErrNoContext is returned when a value has no frame to evaluate in.
var ErrNoContext = errors.New("value has no evaluation context")

// ErrObsolete is returned when the requesting node was discarded.
var ErrObsolete = errors.New("value node is obsolete")

package value

import "time"

// Result is the outcome of one evaluation.
type Result struct {
	// Text is the value text with the "$N = " prefix removed, or the full
	// response when the request asked for raw output.
	Text string

	// Failed is set when fdb could not evaluate the expression, including
	// after the type and scope-chain fallbacks.
	Failed bool

	// Err is set when the request never ran, e.g. the session ended.
	Err error
}

// Request asks the owning frame to evaluate an expression.
type Request struct {
	Expression string

	// Raw returns the whole response and skips the failure fallback.
	Raw bool

	// Delay postpones queueing the request.
	Delay time.Duration

	// Obsolete is consulted before the request uses a queue slot.
	Obsolete func() bool

	// Done receives the result on the dispatcher goroutine.
	Done func(Result)
}

// Context connects values to the frame that produced them.
type Context interface {
	// Evaluate queues an evaluation in the frame.
	Evaluate(req Request)

	// Settings returns the presentation settings for the session.
	Settings() Settings

	// Classes resolves declarations; it may be nil.
	Classes() ClassResolver
}

// Settings controls how results are decoded and presented.
type Settings struct {
	// LegacyXML selects the SDK 3 debugger, which lacks toXMLString support.
	LegacyXML bool

	// EscapeAll is set for SDK 4.12+ debuggers in IDE mode, which escape
	// every string instead of wrapping escapes in markers.
	EscapeAll bool

	// MaxLength truncates presented text.
	MaxLength int

	// PendingDelay postpones secondary evaluations for collections.
	PendingDelay time.Duration

	// XMLDelay postpones the toXMLString evaluation.
	XMLDelay time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MaxLength:    1000,
		PendingDelay: 100 * time.Millisecond,
		XMLDelay:     700 * time.Millisecond,
	}
}

package fdb

import "errors"

// Errors returned by the wire layer.
var (
	// ErrTransportClosed is returned when the fdb output stream has ended.
	ErrTransportClosed = errors.New("fdb transport closed")

	// ErrQueueClosed is returned when adding to or popping from a closed queue.
	ErrQueueClosed = errors.New("command queue closed")

	// ErrUnknownCharset is returned for an output charset fdb cannot be decoded with.
	ErrUnknownCharset = errors.New("unknown charset")
)

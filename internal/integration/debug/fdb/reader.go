package fdb

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const readChunkSize = 4096

// Reader pumps an fdb output stream into a Scanner and hands out Units.
//
// A single goroutine copies bytes from the stream into the buffer and never
// interprets them. Next and Pending are meant for the dispatcher goroutine,
// which is the only consumer of protocol units.
type Reader struct {
	mu   sync.Mutex
	cond *sync.Cond
	scan Scanner
	err  error

	logger *slog.Logger
	notify func()
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderLogger logs raw traffic at debug level.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = l
	}
}

// WithDataNotify registers a callback run after each chunk is buffered.
// The callback must not block.
func WithDataNotify(fn func()) ReaderOption {
	return func(r *Reader) {
		r.notify = fn
	}
}

// NewReader starts pumping src and returns the reader.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{}
	r.cond = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	go r.pump(src)
	return r
}

func (r *Reader) pump(src io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if r.logger != nil {
				r.logger.Debug("fdb output", "bytes", n, "text", chunk)
			}
			r.mu.Lock()
			r.scan.Feed(chunk)
			r.cond.Broadcast()
			r.mu.Unlock()
			if r.notify != nil {
				r.notify()
			}
		}
		if err != nil {
			r.mu.Lock()
			if r.err == nil {
				r.err = err
			}
			r.cond.Broadcast()
			r.mu.Unlock()
			return
		}
	}
}

// Next blocks until a unit is available. With allowUnterminated set, text
// without a marker is released as soon as it is buffered. Once the stream
// has ended any remaining text is returned before ErrTransportClosed.
func (r *Reader) Next(allowUnterminated bool) (Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if u, ok := r.scan.Next(allowUnterminated); ok {
			return u, nil
		}
		if r.err != nil {
			if rest := r.scan.Drain(); rest != "" {
				return Unit{Text: rest}, nil
			}
			if r.err == io.EOF {
				return Unit{}, ErrTransportClosed
			}
			return Unit{}, fmt.Errorf("%w: %v", ErrTransportClosed, r.err)
		}
		r.cond.Wait()
	}
}

// Pending reports whether output is buffered that no unit has consumed yet.
func (r *Reader) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scan.Len() > 0
}

// Closed reports whether the stream has ended.
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err != nil
}

// Close releases a blocked Next. The underlying stream is not closed.
func (r *Reader) Close() {
	r.mu.Lock()
	if r.err == nil {
		r.err = io.EOF
	}
	r.cond.Broadcast()
	r.mu.Unlock()
}

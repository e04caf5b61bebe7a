package fdb

import "sync"

// Queue is a blocking double-ended command queue. Callers on any goroutine
// add commands; one dispatcher goroutine removes them.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Command
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushBack appends an externally requested command.
func (q *Queue) PushBack(c *Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, c)
	q.cond.Signal()
	return nil
}

// PushFront splices a corrective command ahead of everything queued.
func (q *Queue) PushFront(c *Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items)
	q.items[0] = c
	q.cond.Signal()
	return nil
}

// Pop blocks until a command is available and removes it.
func (q *Queue) Pop() (*Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, ErrQueueClosed
	}
	return q.takeFront(), nil
}

// Peek returns the first command without removing it, or nil.
func (q *Queue) Peek() *Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// TakeFront removes and returns the first command without blocking, or nil.
func (q *Queue) TakeFront() *Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return q.takeFront()
}

func (q *Queue) takeFront() *Command {
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return c
}

// Has reports whether a command of the given kind is queued.
func (q *Queue) Has(kind Kind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, c := range q.items {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes a blocked Pop, rejects further additions and returns the
// commands that were still queued.
func (q *Queue) Close() []*Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	rest := q.items
	q.items = nil
	q.cond.Broadcast()
	return rest
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

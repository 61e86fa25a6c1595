package relay

import "sync"

// Queue is an unbounded FIFO of wire lines feeding one connection's writer.
// Push never blocks, so a stalled recipient cannot hold up the sender's
// connection actor.
type Queue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	signal chan struct{}
}

// NewQueue returns an open queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push appends line and reports whether the queue accepted it. A closed
// queue rejects pushes; the caller treats that as a gone recipient.
func (q *Queue) Push(line []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, line)
	q.mu.Unlock()
	q.wake()
	return true
}

// Wait returns a channel that fires when the queue may have items to pop or
// has been closed.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Pop removes the oldest line. ok is false when the queue is empty.
func (q *Queue) Pop() (line []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	line = q.items[0]
	q.items = q.items[1:]
	return line, true
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further pushes and wakes any waiter. Lines already queued
// stay poppable. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

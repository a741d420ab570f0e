// Package dispatch provides the ordered, non-blocking hand-off used by the
// background workers to deliver events to their consumer.
//
// A worker calls Post and returns immediately no matter how slow the
// consumer is; the consumer ranges over C and sees events in exactly the
// order they were posted.
package dispatch

import "sync"

// Queue is an unbounded FIFO between one producer and one consumer.
//
// Design decision: We buffer in a slice rather than a fixed size channel
// because a full channel would block the worker, and the crawl or download
// would then stall behind a slow terminal.
type Queue[T any] struct {
	mu      sync.Mutex
	pending []T
	closed  bool
	wake    chan struct{}
	out     chan T
}

// NewQueue creates a queue and starts its forwarding goroutine.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		pending: make([]T, 0),
		wake:    make(chan struct{}, 1),
		out:     make(chan T),
	}
	go q.forward()
	return q
}

// Post enqueues v. It never blocks on the consumer.
// Posting after Close is a no-op.
func (q *Queue[T]) Post(v T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, v)
	q.mu.Unlock()
	q.signal()
}

// Close marks the end of the stream. Events already posted are still
// delivered, then C is closed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// C returns the channel the consumer reads from.
func (q *Queue[T]) C() <-chan T {
	return q.out
}

// Len returns the number of events not yet handed to the consumer.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// forward moves events from the pending slice to the output channel.
func (q *Queue[T]) forward() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		next := q.pending[0]
		var zero T
		q.pending[0] = zero
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.out <- next
	}
}

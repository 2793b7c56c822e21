package queue

import (
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned when pushing to a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// Stats tracks queue metrics.
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalDropped  int64 // items discarded by Clear
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// Queue is an unbounded FIFO safe for one producer and one consumer.
// Closing it means no more items will be pushed; items already queued can
// still be popped.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	stats  Stats

	ready chan struct{}
}

// New returns an empty open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends item to the tail.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, item)
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if len(q.items) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.items)
	}
	q.notify()
	return nil
}

// Pop removes the head. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item, false
	}

	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued item.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stats.TotalDropped += int64(len(q.items))
	q.items = nil
}

// Close marks the queue as complete. Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notify()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Ready receives a value after a Push or Close. Signals coalesce, so a
// consumer must drain with Pop until it reports empty before waiting again.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Stats returns a snapshot of the queue metrics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.CurrentSize = len(q.items)
	return s
}

func (q *Queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

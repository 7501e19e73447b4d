// Package queue provides the unbounded FIFO used for the command and event
// channels between the protocol goroutine and the session goroutine.
//
// A Queue is meant for exactly one producer and one consumer at a time. The
// type itself is safe for concurrent use, but ordering guarantees are only
// given per producer.
package queue

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded single-producer/single-consumer FIFO.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	// ready holds one token while items is non-empty.
	ready chan struct{}
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends item. It never blocks on the consumer.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop returns the head item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.takeLocked()
}

// Pop blocks until an item is available.
func (q *Queue[T]) Pop() T {
	item, _ := q.PopContext(context.Background())
	return item
}

// PopTimeout waits up to timeout for an item. ok is false on timeout.
func (q *Queue[T]) PopTimeout(timeout time.Duration) (item T, ok bool) {
	if item, ok = q.TryPop(); ok || timeout <= 0 {
		return item, ok
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	item, err := q.PopContext(ctx)
	return item, err == nil
}

// PopContext waits for an item until ctx is done.
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	for {
		if item, ok := q.TryPop(); ok {
			return item, nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			// An item may have landed together with cancellation.
			if item, ok := q.TryPop(); ok {
				return item, nil
			}
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) takeLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// Keep the token armed for the next waiter.
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return item, true
}

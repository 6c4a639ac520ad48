package queue

import (
	"context"
	"sync"
)

var _ Queue[int] = &UnboundedQueue[int]{}

// UnboundedQueue never rejects an item. Use it where a dropped item would
// leave consumers with stale state, e.g. round completions.
type UnboundedQueue[T any] struct {
	lock  sync.Mutex
	items []T
	// ready has capacity one and signals a waiting Dequeue
	ready chan struct{}
}

func NewUnboundedQueue[T any]() *UnboundedQueue[T] {
	return &UnboundedQueue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Enqueue appends item. It never blocks and never fails.
func (q *UnboundedQueue[T]) Enqueue(item T) error {
	q.lock.Lock()
	q.items = append(q.items, item)
	q.lock.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes and returns the item from the front of the queue,
// waiting for one if the queue is empty.
func (q *UnboundedQueue[T]) Dequeue(ctx context.Context) (T, error) {
	for {
		if item, ok := q.pop(); ok {
			return item, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *UnboundedQueue[T]) pop() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

func (q *UnboundedQueue[T]) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

// ReadAllMessages reads all pending messages in the queue
func (q *UnboundedQueue[T]) ReadAllMessages() []T {
	q.lock.Lock()
	defer q.lock.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *UnboundedQueue[T]) ClearQueue() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.items = nil
}

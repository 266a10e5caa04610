package queue

import (
	"sync"
	"time"
)

// Item is a payload waiting for another delivery attempt.
type Item[T any] struct {
	ID          string
	Payload     T
	RetryAt     time.Time
	Attempts    int
	MaxAttempts int
}

// Exhausted reports whether the item has used up its attempts.
func (it *Item[T]) Exhausted() bool {
	return it.MaxAttempts > 0 && it.Attempts >= it.MaxAttempts
}

// Queue holds items until their RetryAt passes. It drops the oldest item once
// capacity is reached.
type Queue[T any] struct {
	items    []*Item[T]
	capacity int
	mu       sync.Mutex
}

func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		items:    make([]*Item[T], 0),
		capacity: capacity,
	}
}

// Enqueue adds it and returns the item dropped to make room, if any.
func (q *Queue[T]) Enqueue(it *Item[T]) (dropped *Item[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		dropped = q.items[0]
		q.items = q.items[1:]
	}
	q.items = append(q.items, it)
	return dropped
}

// Dequeue removes and returns the first item due at now, or nil.
func (q *Queue[T]) Dequeue(now time.Time) *Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if !it.RetryAt.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return it
		}
	}
	return nil
}

func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending items.
func (q *Queue[T]) Snapshot() []*Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]*Item[T], len(q.items))
	copy(result, q.items)
	return result
}

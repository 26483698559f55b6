package queue

import (
	"sync"
)

// Ring is a generic thread-safe FIFO that holds at most Cap items; pushing
// into a full ring drops the oldest item.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	start int
	size  int
}

// NewRing creates an empty ring holding at most capacity items. A
// non-positive capacity is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		items: make([]T, capacity),
	}
}

// Push appends items, evicting the oldest ones once the ring is full.
func (r *Ring[T]) Push(items ...T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		idx := (r.start + r.size) % len(r.items)
		r.items[idx] = it
		if r.size < len(r.items) {
			r.size++
		} else {
			r.start = (r.start + 1) % len(r.items)
		}
	}
}

// Len returns the number of items held.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the maximum number of items held.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Last returns a copy of the newest n items, oldest first.
func (r *Ring[T]) Last(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.size {
		n = r.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, n)
	first := r.start + r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(first+i)%len(r.items)]
	}
	return out
}


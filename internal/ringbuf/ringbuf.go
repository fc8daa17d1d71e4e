// Package ringbuf provides a generic fixed-capacity ring buffer.
//
// A Buffer is not safe for concurrent use. It is meant to be owned by a single
// component (the stabilizer's frame history, the fusion engine's confidence
// history) that serializes access itself.
package ringbuf

// Buffer holds at most Cap() values. Pushing onto a full buffer overwrites the oldest value.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest value
	size  int
}

// New returns an empty buffer. A capacity below 1 is raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Len returns the number of stored values
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the capacity
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Push appends v, evicting the oldest value when full. It reports whether a value was evicted.
func (b *Buffer[T]) Push(v T) bool {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	return true
}

// At returns the i-th value, oldest first. It panics when i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ringbuf: index out of range")
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Newest returns the most recently pushed value
func (b *Buffer[T]) Newest() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.At(b.size - 1), true
}

// All yields values oldest first
func (b *Buffer[T]) All(yield func(int, T) bool) {
	for i := range b.size {
		if !yield(i, b.items[(b.head+i)%len(b.items)]) {
			return
		}
	}
}

// Snapshot returns a copy of the values, oldest first
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.size)
	for i := range b.size {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns a copy of up to n most recent values, oldest first
func (b *Buffer[T]) Last(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := b.size - n
	for i := range n {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

// Retain keeps the values for which keep returns true, preserving order,
// and returns the number removed.
func (b *Buffer[T]) Retain(keep func(T) bool) int {
	kept := 0
	for i := range b.size {
		v := b.items[(b.head+i)%len(b.items)]
		if keep(v) {
			b.items[(b.head+kept)%len(b.items)] = v
			kept++
		}
	}
	removed := b.size - kept
	var zero T
	for i := kept; i < b.size; i++ {
		b.items[(b.head+i)%len(b.items)] = zero
	}
	b.size = kept
	return removed
}

// Resize changes the capacity, keeping the newest values that fit
func (b *Buffer[T]) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(b.items) {
		return
	}
	vals := b.Last(capacity)
	b.items = make([]T, capacity)
	copy(b.items, vals)
	b.head = 0
	b.size = len(vals)
}

// Clear removes all values
func (b *Buffer[T]) Clear() {
	clear(b.items)
	b.head = 0
	b.size = 0
}

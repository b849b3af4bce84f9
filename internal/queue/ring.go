package queue

import "sync/atomic"

// Ring is a lock-free single-producer/single-consumer queue. One goroutine
// may call Push, one other goroutine may call Peek/Pop/Drain/Clear.
type Ring[T any] struct {
	items       []T
	mask        uint32
	read, write atomic.Uint32
}

func NewRing[T any](size int) *Ring[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring size must be a power of 2")
	}
	return &Ring[T]{
		items: make([]T, size),
		mask:  uint32(size - 1),
	}
}

// Push appends v. It returns false without blocking when the ring is full.
func (r *Ring[T]) Push(v T) bool {
	write := r.write.Load()
	if write-r.read.Load() == uint32(len(r.items)) {
		return false
	}
	r.items[write&r.mask] = v
	r.write.Store(write + 1)
	return true
}

// Peek returns the oldest item without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	read := r.read.Load()
	if read == r.write.Load() {
		var zero T
		return zero, false
	}
	return r.items[read&r.mask], true
}

// Pop removes and returns the oldest item.
func (r *Ring[T]) Pop() (T, bool) {
	v, ok := r.Peek()
	if ok {
		r.read.Add(1)
	}
	return v, ok
}

// Drain calls f for every queued item in order.
func (r *Ring[T]) Drain(f func(T)) {
	read := r.read.Load()
	write := r.write.Load()
	for read != write {
		f(r.items[read&r.mask])
		read++
	}
	r.read.Store(read)
}

// Clear drops everything currently queued. Consumer side only.
func (r *Ring[T]) Clear() {
	r.read.Store(r.write.Load())
}

func (r *Ring[T]) Len() int {
	return int(r.write.Load() - r.read.Load())
}

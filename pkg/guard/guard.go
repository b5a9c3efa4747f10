package guard

import "sync"

// Guarded holds a value behind a reader/writer mutex.
//
// Read and Write block until the lock is acquired. TryRead and TryWrite never
// block: when the lock is held elsewhere they return false without calling fn.
type Guarded[T any] struct {
	mu sync.RWMutex
	v  T
}

// New wraps v.
func New[T any](v T) *Guarded[T] {
	return &Guarded[T]{v: v}
}

// Read runs fn under the read lock.
func (g *Guarded[T]) Read(fn func(v *T)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(&g.v)
}

// TryRead runs fn under the read lock if it is free.
func (g *Guarded[T]) TryRead(fn func(v *T)) bool {
	if !g.mu.TryRLock() {
		return false
	}
	defer g.mu.RUnlock()
	fn(&g.v)
	return true
}

// Write runs fn under the write lock.
func (g *Guarded[T]) Write(fn func(v *T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.v)
}

// TryWrite runs fn under the write lock if it is free.
func (g *Guarded[T]) TryWrite(fn func(v *T)) bool {
	if !g.mu.TryLock() {
		return false
	}
	defer g.mu.Unlock()
	fn(&g.v)
	return true
}

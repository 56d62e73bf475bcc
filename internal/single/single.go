// Package single provides a single-resolution slot: a protected
// single-assignment cell that multiple producers may race to resolve, where
// only the first writer's value is retained and readers can await resolution.
package single

import (
	"context"
	"sync"
)

// Slot is a take-once asynchronous cell. Any number of goroutines may call
// Resolve concurrently; exactly one of them wins and all later calls are
// dropped. Waiters block until the slot is resolved.
//
// The zero value is not usable; create slots with New.
type Slot[T any] struct {
	mu       sync.Mutex
	value    T
	resolved bool
	done     chan struct{}
}

// New creates an unresolved slot.
func New[T any]() *Slot[T] {
	return &Slot[T]{done: make(chan struct{})}
}

// Resolve stores v if the slot is still unresolved and wakes all waiters.
// It reports whether this call was the winning resolution.
func (s *Slot[T]) Resolve(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return false
	}
	s.value = v
	s.resolved = true
	close(s.done)
	return true
}

// Wait blocks until the slot is resolved or the context is done.
func (s *Slot[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the resolved value without blocking. The second return is
// false while the slot is unresolved.
func (s *Slot[T]) TryGet() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.resolved
}

// Done returns a channel closed when the slot resolves. Useful in selects
// alongside other channels.
func (s *Slot[T]) Done() <-chan struct{} {
	return s.done
}

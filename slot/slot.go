// Package slot provides a lazily initialized, shared, single-value container.
//
// A Slot runs its initializer exactly once per successful initialization no
// matter how many goroutines race on first access, and afterwards serves the
// stored value to any number of concurrent readers without locking. The zero
// Slot is empty and ready for use, so it can live in a package-level var.
package slot

import (
	"sync"
	"sync/atomic"
)

// Slot holds at most one V.
type Slot[V any] struct {
	mu  sync.Mutex
	val atomic.Pointer[V]
}

// GetOrInit returns the stored value, running init first if the slot is
// empty. Concurrent callers block until the winning init completes, then all
// observe the same value.
//
// If init panics the panic propagates to that caller and the slot stays
// empty, so a later call retries. init must not access the same slot.
func (s *Slot[V]) GetOrInit(init func() V) V {
	if p := s.val.Load(); p != nil {
		return *p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.val.Load(); p != nil {
		return *p
	}
	v := init()
	s.val.Store(&v)
	return v
}

// GetOrInitErr is GetOrInit for fallible initializers. An error is returned
// to the caller that ran init and nothing is stored.
func (s *Slot[V]) GetOrInitErr(init func() (V, error)) (V, error) {
	if p := s.val.Load(); p != nil {
		return *p, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.val.Load(); p != nil {
		return *p, nil
	}
	v, err := init()
	if err != nil {
		var zero V
		return zero, err
	}
	s.val.Store(&v)
	return v, nil
}

// Get returns the stored value without initializing it.
func (s *Slot[V]) Get() (V, bool) {
	if p := s.val.Load(); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

// Initialized reports whether the slot currently holds a value.
func (s *Slot[V]) Initialized() bool { return s.val.Load() != nil }

// Teardown empties the slot, passing the stored value to fn if and only if
// the slot was initialized. It reports whether a value was torn down. An
// empty slot never calls fn.
//
// Teardown waits for any in-flight initialization. fn runs after the slot is
// already empty and unlocked, so fn may itself reach the slot: a GetOrInit
// from inside fn, or racing with it, initializes a fresh value. Readers that
// obtained the value earlier keep their copy; callers are responsible for not
// using a torn-down value.
func (s *Slot[V]) Teardown(fn func(V)) bool {
	s.mu.Lock()
	p := s.val.Swap(nil)
	s.mu.Unlock()
	if p == nil {
		return false
	}
	if fn != nil {
		fn(*p)
	}
	return true
}

package deferdrop

import "io"

// Disposable is the single capability the disposal queue carries: tear
// yourself down.
type Disposable interface {
	Dispose() error
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func() error

// Dispose calls f.
func (f DisposeFunc) Dispose() error { return f() }

// released holds the last reference to a value with no teardown method, so
// that the reference is let go on the worker.
type released[T any] struct{ v T }

func (r *released[T]) Dispose() error {
	var zero T
	r.v = zero
	return nil
}

// disposerFor erases v behind Disposable. An explicit fn wins, then
// Disposable, io.Closer and a bare Dispose method.
func disposerFor[T any](v T, fn func(T)) Disposable {
	if fn != nil {
		return DisposeFunc(func() error {
			fn(v)
			return nil
		})
	}
	switch x := any(v).(type) {
	case Disposable:
		return x
	case io.Closer:
		return DisposeFunc(x.Close)
	case interface{ Dispose() }:
		return DisposeFunc(func() error {
			x.Dispose()
			return nil
		})
	}
	return &released[T]{v: v}
}

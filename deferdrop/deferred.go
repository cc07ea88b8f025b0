package deferdrop

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	held uint32 = iota
	taken
)

// cell is the ownership state shared by a wrapper and its GC cleanup. It
// never points back at the wrapper.
type cell[T any] struct {
	state   atomic.Uint32
	value   T
	dispose func(T)
	bin     *Bin
}

// take moves the value out at most once.
func (c *cell[T]) take() (T, bool) {
	var zero T
	if c == nil || !c.state.CompareAndSwap(held, taken) {
		return zero, false
	}
	v := c.value
	c.value = zero
	return v, true
}

func (c *cell[T]) throwAway() {
	v, ok := c.take()
	if !ok {
		return
	}
	target := c.bin
	if target == nil {
		target = Default()
	}
	target.ThrowAway(disposerFor(v, c.dispose))
}

// Deferred owns a value whose teardown runs on a Bin's worker instead of the
// releasing goroutine.
//
// Exactly one of Drop (or Close, Dispose, the auto-drop cleanup) and
// IntoInner takes the value; every later release is a no-op. The zero
// Deferred holds nothing.
type Deferred[T any] struct {
	c       *cell[T]
	cleanup runtime.Cleanup
	auto    atomic.Bool
}

type WrapOption func(*wrapOptions)

type wrapOptions struct {
	bin  *Bin
	auto bool
}

// In sends the value to b instead of the default bin.
func In(b *Bin) WrapOption { return func(o *wrapOptions) { o.bin = b } }

// WithAutoDrop releases the value when the garbage collector finds the
// wrapper unreachable without an explicit release. The wrapper must stay
// reachable for as long as anything obtained from Get or Ptr is in use.
func WithAutoDrop() WrapOption { return func(o *wrapOptions) { o.auto = true } }

// New wraps value. It has no side effects besides registering the auto-drop
// cleanup when requested.
func New[T any](value T, opts ...WrapOption) *Deferred[T] {
	return NewFunc(value, nil, opts...)
}

// From converts a bare value into a wrapper with default options.
func From[T any](value T) *Deferred[T] { return New(value) }

// NewFunc wraps value with an explicit teardown, which takes precedence over
// any Dispose or Close method of T.
func NewFunc[T any](value T, dispose func(T), opts ...WrapOption) *Deferred[T] {
	var o wrapOptions
	for _, fn := range opts {
		fn(&o)
	}
	d := &Deferred[T]{c: &cell[T]{value: value, dispose: dispose, bin: o.bin}}
	if o.auto {
		d.cleanup = runtime.AddCleanup(d, (*cell[T]).throwAway, d.c)
		d.auto.Store(true)
	}
	return d
}

// Held reports whether the wrapper still owns its value.
func (d *Deferred[T]) Held() bool {
	return d != nil && d.c != nil && d.c.state.Load() == held
}

// Get returns the value. It panics with ErrConsumed once the wrapper has
// been released or unwrapped.
func (d *Deferred[T]) Get() T {
	return *d.Ptr()
}

// Ptr gives mutable access to the value in place.
func (d *Deferred[T]) Ptr() *T {
	if !d.Held() {
		panic(errors.WithStack(ErrConsumed))
	}
	return &d.c.value
}

// Set replaces the value. The previous value is discarded without teardown.
func (d *Deferred[T]) Set(value T) {
	*d.Ptr() = value
}

// IntoInner returns the value and cancels its deferred disposal. It panics
// with ErrConsumed if the value is gone.
func (d *Deferred[T]) IntoInner() T {
	v, ok := d.TryIntoInner()
	if !ok {
		panic(errors.WithStack(ErrConsumed))
	}
	return v
}

// TryIntoInner is IntoInner reporting a missing value instead of panicking.
func (d *Deferred[T]) TryIntoInner() (T, bool) {
	var zero T
	if d == nil {
		return zero, false
	}
	v, ok := d.c.take()
	if !ok {
		return zero, false
	}
	d.stopCleanup()
	return v, true
}

// Drop hands the value to the bin's worker and returns immediately. The
// default bin is created on first use. Drop is a no-op once the value is
// gone.
func (d *Deferred[T]) Drop() {
	if d == nil || d.c == nil {
		return
	}
	d.stopCleanup()
	d.c.throwAway()
}

// Close is Drop as an io.Closer. It always returns nil.
func (d *Deferred[T]) Close() error {
	d.Drop()
	return nil
}

// Dispose is Drop as a Disposable, so wrappers can be queued directly.
func (d *Deferred[T]) Dispose() error {
	d.Drop()
	return nil
}

// Format prints the held value with the same verb and flags, so a wrapper
// formats as its contents. A released wrapper prints <consumed>.
func (d *Deferred[T]) Format(f fmt.State, verb rune) {
	if !d.Held() {
		fmt.Fprint(f, "<consumed>")
		return
	}
	fmt.Fprintf(f, fmt.FormatString(f, verb), d.c.value)
}

func (d *Deferred[T]) stopCleanup() {
	if d.auto.CompareAndSwap(true, false) {
		d.cleanup.Stop()
	}
}

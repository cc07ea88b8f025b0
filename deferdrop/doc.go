// Package deferdrop moves expensive teardown off the caller's goroutine.
//
// A Deferred owns a value. Releasing the wrapper (Drop, Close, or the garbage
// collector for wrappers created WithAutoDrop) hands the value to a Bin, whose
// single worker goroutine disposes queued values one at a time. IntoInner
// cancels the deferral and gives the value back.
//
// Wrappers not bound to a Bin with In share one process-wide default Bin,
// created on first release:
//
//	d := deferdrop.New(hugeIndex)
//	defer d.Drop()
//	d.Get().Lookup(key)
//
// Values released from the same goroutine are disposed in release order.
// Nothing is ordered across goroutines, the queue is unbounded, and values
// still queued when the process exits are never disposed. Nested wrappers
// released while the worker disposes their parent are appended to the tail
// of the same queue and disposed later by the same worker.
package deferdrop

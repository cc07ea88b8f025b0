package deferdrop

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrWorkerGone is the cause of the panic raised when a value cannot be
	// enqueued because the bin's worker is no longer consuming.
	ErrWorkerGone = errors.New("deferdrop: disposal worker is gone")

	// ErrConsumed is the cause of the panic raised when a wrapper's value is
	// accessed after it was dropped or unwrapped.
	ErrConsumed = errors.New("deferdrop: value already consumed")
)

// PanicError is a panic recovered from a disposal.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic during disposal: %v", e.Value) }

// Unwrap exposes a panic value that was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

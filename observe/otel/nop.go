package otel

import (
	"context"
	"time"
)

// Nop is a no-op implementation of the deferdrop.Observer interface.
type Nop struct{}

// NewNop returns a no-op observer.
func NewNop() *Nop { return &Nop{} }

func (*Nop) WorkerStarted(context.Context)                        {}
func (*Nop) Enqueued(context.Context)                             {}
func (*Nop) Disposed(context.Context, time.Duration, error, bool) {}
func (*Nop) WorkerStopped(context.Context, error)                 {}

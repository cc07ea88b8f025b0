// Package prom provides deferdrop observers that count disposal activity,
// either in memory (Metrics) or as Prometheus metrics (Collector).
package prom

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics is a lightweight in-memory observer that maintains counters and simple sums.
// It implements the deferdrop.Observer interface without external dependencies.
type Metrics struct {
	// workers
	activeWorkers  atomic.Int64
	workersStarted atomic.Int64
	workersStopped atomic.Int64
	workersFailed  atomic.Int64

	// values
	enqueued      atomic.Int64
	disposed      atomic.Int64
	disposeErrors atomic.Int64
	disposePanics atomic.Int64
	disposeSumNs  atomic.Int64
}

// New returns a new Metrics observer.
func New() *Metrics { return &Metrics{} }

// WorkerStarted records a worker start.
func (m *Metrics) WorkerStarted(_ context.Context) {
	m.activeWorkers.Add(1)
	m.workersStarted.Add(1)
}

// Enqueued records a value handed to a bin.
func (m *Metrics) Enqueued(_ context.Context) {
	m.enqueued.Add(1)
}

// Disposed records a finished disposal and accumulates its duration.
func (m *Metrics) Disposed(_ context.Context, dur time.Duration, err error, panicked bool) {
	m.disposed.Add(1)
	if err != nil {
		m.disposeErrors.Add(1)
	}
	if panicked {
		m.disposePanics.Add(1)
	}
	m.disposeSumNs.Add(dur.Nanoseconds())
}

// WorkerStopped records a worker exit; a non-nil cause counts as a failure.
func (m *Metrics) WorkerStopped(_ context.Context, cause error) {
	m.activeWorkers.Add(-1)
	m.workersStopped.Add(1)
	if cause != nil {
		m.workersFailed.Add(1)
	}
}

// Snapshot exposes a copy of current metric values for exporting/inspection.
type Snapshot struct {
	ActiveWorkers  int64
	WorkersStarted int64
	WorkersStopped int64
	WorkersFailed  int64
	Enqueued       int64
	Disposed       int64
	DisposeErrors  int64
	DisposePanics  int64
	DisposeSumNs   int64
}

// Pending is the number of enqueued values not yet disposed.
func (s Snapshot) Pending() int64 { return s.Enqueued - s.Disposed }

// GetSnapshot returns the current metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		ActiveWorkers:  m.activeWorkers.Load(),
		WorkersStarted: m.workersStarted.Load(),
		WorkersStopped: m.workersStopped.Load(),
		WorkersFailed:  m.workersFailed.Load(),
		Enqueued:       m.enqueued.Load(),
		Disposed:       m.disposed.Load(),
		DisposeErrors:  m.disposeErrors.Load(),
		DisposePanics:  m.disposePanics.Load(),
		DisposeSumNs:   m.disposeSumNs.Load(),
	}
}

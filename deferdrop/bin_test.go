package deferdrop

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestConcurrentFirstDropStartsOneWorker(t *testing.T) {
	Shutdown()
	obs := &countObserver{}
	Configure(WithName("race"), WithObserver(obs))
	t.Cleanup(func() {
		Shutdown()
		Configure()
	})

	const N = 64
	start := make(chan struct{})
	bins := make([]*Bin, N)
	var g errgroup.Group
	for i := 0; i < N; i++ {
		g.Go(func() error {
			<-start
			New(&counter{}).Drop()
			bins[i] = Default()
			return nil
		})
	}
	close(start)
	_ = g.Wait()

	if got := obs.started.Load(); got != 1 {
		t.Fatalf("expected exactly one worker, got %d", got)
	}
	for i, b := range bins {
		if b != bins[0] {
			t.Fatalf("caller %d observed a different default bin", i)
		}
	}
	if name := bins[0].Name(); name != "race" {
		t.Fatalf("Configure options were not applied, name=%q", name)
	}
	flush(t, bins[0])
	waitFor(t, "all disposals", func() bool { return obs.disposed.Load() == N+1 })
}

func TestShutdownRecreatesDefault(t *testing.T) {
	first := Default()
	if !Shutdown() {
		t.Fatal("expected a running default bin")
	}
	select {
	case <-first.Done():
	default:
		t.Fatal("Shutdown must wait for the worker to exit")
	}
	if Shutdown() {
		t.Fatal("second Shutdown should find nothing")
	}
	second := Default()
	if second == first {
		t.Fatal("expected a fresh default bin after Shutdown")
	}
	flush(t, second)
}

func TestShutdownDuringNestedDrop(t *testing.T) {
	Shutdown()
	t.Cleanup(func() { Shutdown() })

	child := &counter{}
	inner := New(child)
	started := make(chan struct{})
	Default().ThrowAway(DisposeFunc(func() error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		inner.Drop()
		return nil
	}))
	<-started

	returned := make(chan struct{})
	go func() {
		Shutdown()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown blocked while the worker released a nested value")
	}
	waitFor(t, "nested value on the new default bin", func() bool { return child.n.Load() == 1 })
}

func TestFailFastStopsWorker(t *testing.T) {
	t.Parallel()
	obs := &countObserver{}
	b := newTestBin(t, WithObserver(obs))
	c := &counter{}
	b.ThrowAway(DisposeFunc(func() error { panic("boom") }))
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after a panicking disposal")
	}
	var pe *PanicError
	if !errors.As(b.Err(), &pe) || pe.Value != "boom" || len(pe.Stack) == 0 {
		t.Fatalf("expected PanicError(boom), got %v", b.Err())
	}
	if b.Context().Err() == nil {
		t.Fatal("bin context should be canceled once the worker stops")
	}
	if obs.panicked.Load() != 1 || obs.stopped.Load() != 1 {
		t.Fatalf("unexpected observer counts: panicked=%d stopped=%d", obs.panicked.Load(), obs.stopped.Load())
	}

	func() {
		defer func() {
			err, _ := recover().(error)
			if !errors.Is(err, ErrWorkerGone) {
				t.Fatalf("expected ErrWorkerGone panic, got %v", err)
			}
		}()
		New(c, In(b)).Drop()
	}()
	if c.n.Load() != 0 {
		t.Fatal("value must not be disposed by a stopped worker")
	}
}

func TestSupervisorContinuesAfterPanic(t *testing.T) {
	t.Parallel()
	obs := &countObserver{}
	b := newTestBin(t, WithPolicy(Supervisor), WithObserver(obs))
	c := &counter{}
	b.ThrowAway(DisposeFunc(func() error { panic(errors.New("boom")) }))
	New(c, In(b)).Drop()
	flush(t, b)
	if c.n.Load() != 1 {
		t.Fatal("supervisor worker should keep disposing after a panic")
	}
	if b.Err() != nil {
		t.Fatalf("supervisor worker should not record a stop cause, got %v", b.Err())
	}
	if obs.panicked.Load() != 1 {
		t.Fatalf("expected one panicked disposal, got %d", obs.panicked.Load())
	}
}

func TestDisposeErrorKeepsWorker(t *testing.T) {
	t.Parallel()
	obs := &countObserver{}
	b := newTestBin(t, WithObserver(obs))
	b.ThrowAway(DisposeFunc(func() error { return errors.New("close failed") }))
	flush(t, b)
	if obs.errored.Load() != 1 || obs.panicked.Load() != 0 {
		t.Fatalf("unexpected observer counts: errored=%d panicked=%d", obs.errored.Load(), obs.panicked.Load())
	}
	if b.Err() != nil {
		t.Fatalf("a failed disposal must not stop the worker, got %v", b.Err())
	}
}

func TestCloseAbandonsQueued(t *testing.T) {
	t.Parallel()
	b := newTestBin(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	b.ThrowAway(DisposeFunc(func() error {
		close(entered)
		<-release
		return nil
	}))
	<-entered
	c := &counter{}
	for i := 0; i < 5; i++ {
		New(c, In(b)).Drop()
	}
	closed := make(chan struct{})
	go func() {
		_ = b.Close()
		close(closed)
	}()
	deadline := time.Now().Add(time.Second)
	for b.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the in-flight disposal")
	}
	if got := c.n.Load(); got != 0 {
		t.Fatalf("queued values should be abandoned on Close, got %d disposals", got)
	}
	if b.Err() != nil {
		t.Fatalf("Close is not a failure, got %v", b.Err())
	}
	_ = b.Close()

	defer func() {
		err, _ := recover().(error)
		if !errors.Is(err, ErrWorkerGone) {
			t.Fatalf("expected ErrWorkerGone panic, got %v", err)
		}
	}()
	New(c, In(b)).Drop()
}

func TestBinNameInContext(t *testing.T) {
	t.Parallel()
	b := newTestBin(t, WithName("named"))
	if got := BinName(b.Context()); got != "named" {
		t.Fatalf("expected bin name in context, got %q", got)
	}
	if got := BinName(context.Background()); got != "" {
		t.Fatalf("expected empty name, got %q", got)
	}
}

func TestObserversFanOut(t *testing.T) {
	t.Parallel()
	a, c := &countObserver{}, &countObserver{}
	b := newTestBin(t, WithObserver(Observers(a, nil, c)))
	New(&counter{}, In(b)).Drop()
	flush(t, b)
	for i, o := range []*countObserver{a, c} {
		waitFor(t, "sentinel disposal", func() bool { return o.disposed.Load() == 2 })
		if o.started.Load() != 1 || o.enqueued.Load() != 2 {
			t.Fatalf("observer %d: started=%d enqueued=%d disposed=%d",
				i, o.started.Load(), o.enqueued.Load(), o.disposed.Load())
		}
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Policy{"": FailFast, "fail-fast": FailFast, "Supervisor": Supervisor} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = (%v, %v), want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("restart"); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
	if Supervisor.String() != "supervisor" {
		t.Fatalf("unexpected String: %s", Supervisor)
	}
}

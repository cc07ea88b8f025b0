package deferdrop

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Policy decides what a worker does after a disposal panics.
type Policy int

const (
	// FailFast stops the worker. Queued values are abandoned and later
	// releases into the bin panic with ErrWorkerGone.
	FailFast Policy = iota
	// Supervisor logs the panic and moves on to the next value.
	Supervisor
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Supervisor:
		return "supervisor"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts the names produced by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail-fast", "failfast", "":
		return FailFast, nil
	case "supervisor":
		return Supervisor, nil
	}
	return FailFast, errors.Errorf("deferdrop: unknown policy %q", s)
}

type Option func(*Options)

type Options struct {
	Name      string
	Policy    Policy
	Observer  Observer
	Logger    *zerolog.Logger
	QueueHint int64
}

func defaultOptions() Options { return Options{Name: "deferdrop", QueueHint: 64} }

func WithName(name string) Option { return func(o *Options) { o.Name = name } }

func WithPolicy(p Policy) Option { return func(o *Options) { o.Policy = p } }

func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

func WithLogger(l zerolog.Logger) Option { return func(o *Options) { o.Logger = &l } }

// WithQueueHint sizes the queue's initial backing storage. It is not a bound.
func WithQueueHint(n int64) Option { return func(o *Options) { o.QueueHint = n } }

// Observer receives bin lifecycle and disposal events. The ctx passed to
// every hook is the bin's context; see BinName.
type Observer interface {
	WorkerStarted(ctx context.Context)
	Enqueued(ctx context.Context)
	Disposed(ctx context.Context, dur time.Duration, err error, panicked bool)
	WorkerStopped(ctx context.Context, cause error)
}

type binNameKey struct{}

// BinName returns the name of the bin owning ctx, or "" for other contexts.
func BinName(ctx context.Context) string {
	name, _ := ctx.Value(binNameKey{}).(string)
	return name
}

// Bin is a disposal queue drained by one worker goroutine.
type Bin struct {
	ctx       context.Context
	cancel    context.CancelFunc
	queue     *queue.Queue
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	cause error

	opts Options
	obs  Observer
	log  zerolog.Logger
}

// NewBin creates a bin and starts its worker. Close stops it.
func NewBin(optFns ...Option) *Bin {
	b := &Bin{opts: defaultOptions(), done: make(chan struct{})}
	for _, fn := range optFns {
		fn(&b.opts)
	}
	if b.opts.QueueHint < 0 {
		b.opts.QueueHint = 0
	}
	b.ctx, b.cancel = context.WithCancel(context.WithValue(context.Background(), binNameKey{}, b.opts.Name))
	b.obs = b.opts.Observer
	logger := log.Logger
	if b.opts.Logger != nil {
		logger = *b.opts.Logger
	}
	b.log = logger.With().Str("bin", b.opts.Name).Logger()
	b.queue = queue.New(b.opts.QueueHint)
	if b.obs != nil {
		b.obs.WorkerStarted(b.ctx)
	}
	go b.run()
	return b
}

func (b *Bin) Name() string { return b.opts.Name }

// Context is canceled once the worker has stopped.
func (b *Bin) Context() context.Context { return b.ctx }

// Done is closed when the worker goroutine exits.
func (b *Bin) Done() <-chan struct{} { return b.done }

// Err returns the panic that stopped a FailFast worker, if any.
func (b *Bin) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cause
}

// Len is the number of values waiting for the worker.
func (b *Bin) Len() int64 { return b.queue.Len() }

// ThrowAway enqueues d and returns without waiting for it to be disposed.
//
// A bin that can no longer accept values is a fatal condition: ThrowAway
// panics with an error wrapping ErrWorkerGone rather than lose the value.
func (b *Bin) ThrowAway(d Disposable) {
	if d == nil {
		return
	}
	if err := b.queue.Put(d); err != nil {
		reason := "bin closed"
		if cause := b.Err(); cause != nil {
			reason = cause.Error()
		}
		err = errors.Wrapf(ErrWorkerGone, "bin %q (%s)", b.opts.Name, reason)
		b.log.Error().Err(err).Msg("cannot enqueue value for disposal")
		panic(err)
	}
	if b.obs != nil {
		b.obs.Enqueued(b.ctx)
	}
}

// Close marks the producer side gone and waits for the worker to finish the
// value it is disposing. Values still queued are abandoned. Close must not be
// called from a disposal running on b.
func (b *Bin) Close() error {
	b.closeOnce.Do(func() {
		if n := len(b.queue.Dispose()); n > 0 {
			b.log.Warn().Int("abandoned", n).Msg("bin closed with queued values")
		}
	})
	<-b.done
	return nil
}

func (b *Bin) run() {
	defer close(b.done)
	b.log.Debug().Msg("disposal worker started")
	b.stop(b.loop())
}

func (b *Bin) loop() error {
	for {
		items, err := b.queue.Get(1)
		if err != nil {
			return nil
		}
		for _, item := range items {
			d, ok := item.(Disposable)
			if !ok {
				continue
			}
			err := b.dispose(d)
			var pe *PanicError
			if b.opts.Policy == FailFast && errors.As(err, &pe) {
				return err
			}
		}
	}
}

func (b *Bin) dispose(d Disposable) (err error) {
	var start time.Time
	if b.obs != nil {
		start = time.Now()
	}
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			pe := &PanicError{Value: r, Stack: debug.Stack()}
			b.log.Error().Err(pe).Str("policy", b.opts.Policy.String()).
				Bytes("stack", pe.Stack).Msg("disposal panicked")
			err = pe
		}
		if b.obs != nil {
			b.obs.Disposed(b.ctx, time.Since(start), err, panicked)
		}
	}()
	if err = d.Dispose(); err != nil {
		b.log.Warn().Err(err).Msg("disposal failed")
	}
	return err
}

func (b *Bin) stop(cause error) {
	b.mu.Lock()
	b.cause = cause
	b.mu.Unlock()
	if n := len(b.queue.Dispose()); n > 0 {
		b.log.Warn().Int("abandoned", n).Msg("disposal worker stopped with queued values")
	}
	b.cancel()
	if cause != nil {
		b.log.Error().Err(cause).Msg("disposal worker stopped")
	} else {
		b.log.Debug().Msg("disposal worker stopped")
	}
	if b.obs != nil {
		b.obs.WorkerStopped(b.ctx, cause)
	}
}

type multiObserver []Observer

// Observers fans events out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	m := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) WorkerStarted(ctx context.Context) {
	for _, o := range m {
		o.WorkerStarted(ctx)
	}
}

func (m multiObserver) Enqueued(ctx context.Context) {
	for _, o := range m {
		o.Enqueued(ctx)
	}
}

func (m multiObserver) Disposed(ctx context.Context, dur time.Duration, err error, panicked bool) {
	for _, o := range m {
		o.Disposed(ctx, dur, err, panicked)
	}
}

func (m multiObserver) WorkerStopped(ctx context.Context, cause error) {
	for _, o := range m {
		o.WorkerStopped(ctx, cause)
	}
}

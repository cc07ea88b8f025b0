package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NetPo4ki/go-deferdrop/deferdrop"
)

const instrumentationName = "github.com/NetPo4ki/go-deferdrop"

// Tracer emits spans for bin activity. Enqueues are on the producers' hot
// path and are not traced.
type Tracer struct {
	tracer trace.Tracer
}

var _ deferdrop.Observer = (*Tracer)(nil)

// NewTracer uses tp, or the global provider when tp is nil.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

func (t *Tracer) WorkerStarted(ctx context.Context) {
	_, span := t.tracer.Start(ctx, "deferdrop.worker.start", trace.WithAttributes(binAttr(ctx)))
	span.End()
}

func (t *Tracer) Enqueued(context.Context) {}

// Disposed records a span covering the disposal that just finished.
func (t *Tracer) Disposed(ctx context.Context, dur time.Duration, err error, panicked bool) {
	end := time.Now()
	_, span := t.tracer.Start(ctx, "deferdrop.dispose",
		trace.WithTimestamp(end.Add(-dur)),
		trace.WithAttributes(binAttr(ctx), attribute.Bool("deferdrop.panicked", panicked)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(end))
}

func (t *Tracer) WorkerStopped(ctx context.Context, cause error) {
	_, span := t.tracer.Start(ctx, "deferdrop.worker.stop", trace.WithAttributes(binAttr(ctx)))
	if cause != nil {
		span.RecordError(cause)
		span.SetStatus(codes.Error, cause.Error())
	}
	span.End()
}

func binAttr(ctx context.Context) attribute.KeyValue {
	return attribute.String("deferdrop.bin", deferdrop.BinName(ctx))
}

package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NetPo4ki/go-deferdrop/deferdrop"
)

// Collector exports bin activity as Prometheus metrics labelled by bin name.
type Collector struct {
	workers  *prometheus.GaugeVec
	starts   *prometheus.CounterVec
	stops    *prometheus.CounterVec
	enqueued *prometheus.CounterVec
	disposed *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ deferdrop.Observer = (*Collector)(nil)

// NewCollector builds unregistered metrics under namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		workers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "deferdrop",
				Name:      "workers",
				Help:      "Running disposal workers.",
			},
			[]string{"bin"},
		),
		starts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deferdrop",
				Name:      "worker_starts_total",
				Help:      "Disposal workers started.",
			},
			[]string{"bin"},
		),
		stops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deferdrop",
				Name:      "worker_stops_total",
				Help:      "Disposal workers stopped, by whether a panic stopped them.",
			},
			[]string{"bin", "failed"},
		),
		enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deferdrop",
				Name:      "enqueued_total",
				Help:      "Values handed to a bin for disposal.",
			},
			[]string{"bin"},
		),
		disposed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deferdrop",
				Name:      "disposed_total",
				Help:      "Values disposed, by outcome (ok, error, panic).",
			},
			[]string{"bin", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "deferdrop",
				Name:      "dispose_duration_seconds",
				Help:      "Time spent disposing a single value.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"bin"},
		),
	}
}

// Register adds every metric to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.workers, c.starts, c.stops, c.enqueued, c.disposed, c.duration} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) WorkerStarted(ctx context.Context) {
	bin := deferdrop.BinName(ctx)
	c.workers.WithLabelValues(bin).Inc()
	c.starts.WithLabelValues(bin).Inc()
}

func (c *Collector) Enqueued(ctx context.Context) {
	c.enqueued.WithLabelValues(deferdrop.BinName(ctx)).Inc()
}

func (c *Collector) Disposed(ctx context.Context, dur time.Duration, err error, panicked bool) {
	bin := deferdrop.BinName(ctx)
	outcome := "ok"
	switch {
	case panicked:
		outcome = "panic"
	case err != nil:
		outcome = "error"
	}
	c.disposed.WithLabelValues(bin, outcome).Inc()
	c.duration.WithLabelValues(bin).Observe(dur.Seconds())
}

func (c *Collector) WorkerStopped(ctx context.Context, cause error) {
	bin := deferdrop.BinName(ctx)
	c.workers.WithLabelValues(bin).Dec()
	failed := "false"
	if cause != nil {
		failed = "true"
	}
	c.stops.WithLabelValues(bin, failed).Inc()
}

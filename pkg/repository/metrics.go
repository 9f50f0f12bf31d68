package repository

import (
	"context"
	"errors"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts repository operations. It implements prometheus.Collector
// and must be registered by the caller.
type Metrics struct {
	lookups           *prometheus.CounterVec
	resolutions       *prometheus.CounterVec
	writes            *prometheus.CounterVec
	refUpdateFailures prometheus.Counter
}

// NewMetrics returns an unregistered collector.
func NewMetrics() *Metrics {
	return &Metrics{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitobj_lookups_total",
				Help: "Object lookups by requested kind and result",
			},
			[]string{"kind", "result"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitobj_reference_resolutions_total",
				Help: "Reference resolutions by result",
			},
			[]string{"result"},
		),
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitobj_writes_total",
				Help: "Objects written by kind",
			},
			[]string{"kind"},
		),
		refUpdateFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gitobj_ref_update_failures_total",
				Help: "Commits written whose reference update then failed",
			},
		),
	}
}

// Describe describes all metrics exposed by Metrics.
func (m *Metrics) Describe(descs chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, descs)
}

// Collect collects all metrics exposed by Metrics.
func (m *Metrics) Collect(metrics chan<- prometheus.Metric) {
	m.lookups.Collect(metrics)
	m.resolutions.Collect(metrics)
	m.writes.Collect(metrics)
	m.refUpdateFailures.Collect(metrics)
}

// result classifies an error for metric labels.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrObjectNotFound), errors.Is(err, ErrReferenceNotFound):
		return "not_found"
	case errors.Is(err, ErrObjectTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrReferenceResolution):
		return "unresolved"
	default:
		return "error"
	}
}

func (m *Metrics) observeLookup(kind object.Type, err error) {
	m.lookups.WithLabelValues(kind.String(), result(err)).Inc()
}

func (m *Metrics) observeResolution(err error) {
	m.resolutions.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) observeWrite(kind object.Type) {
	m.writes.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeRefUpdateFailure() {
	m.refUpdateFailures.Inc()
}

// startSpan opens a tracing span named after the public operation.
func startSpan(ctx context.Context, op string, tags opentracing.Tags) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "repository."+op, tags)
	return span, ctx
}

// finishSpan records err on span and finishes it.
func finishSpan(span opentracing.Span, err error) {
	if err != nil {
		span.SetTag("error", true)
		span.LogKV("event", "error", "message", err.Error())
	}
	span.Finish()
}

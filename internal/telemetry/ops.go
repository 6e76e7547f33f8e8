package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Ops records one span, one counter increment and one duration sample per
// operation under a common prefix, e.g. "duet.tracker".
type Ops struct {
	prefix string
	tracer trace.Tracer
	count  metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// NewOps builds the instruments for scope. Instruments are resolved from
// the global providers at call time, so call it after Init.
func NewOps(scope, prefix string) *Ops {
	m := Meter(scope)
	count, _ := m.Int64Counter(prefix+".operations",
		metric.WithDescription("Total operations executed"),
	)
	dur, _ := m.Float64Histogram(prefix+".operation.duration",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter(prefix+".errors",
		metric.WithDescription("Total operation errors"),
	)
	return &Ops{
		prefix: prefix,
		tracer: Tracer(scope),
		count:  count,
		dur:    dur,
		errs:   errs,
	}
}

// Start opens a span for the named operation. The returned function ends it
// and records duration and the error, if any.
func (o *Ops) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	all := append([]attribute.KeyValue{attribute.String("operation", name)}, attrs...)
	ctx, span := o.tracer.Start(ctx, o.prefix+"."+name, trace.WithAttributes(all...))
	o.count.Add(ctx, 1, metric.WithAttributes(all...))
	start := time.Now()

	return ctx, func(err error) {
		o.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(all...))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.errs.Add(ctx, 1, metric.WithAttributes(all...))
		}
		span.End()
	}
}

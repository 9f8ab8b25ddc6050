package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/cwmanager/internal/dispatch"
)

// InstrumentationName is the meter and tracer scope used by NewGlobalObserver.
const InstrumentationName = "github.com/wagiedev/cwmanager"

// Observer records dispatch outcomes into OpenTelemetry.
type Observer struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

var _ dispatch.Observer = (*Observer)(nil)

// NewObserver creates an observer bound to the provided meter and tracer.
// A nil tracer disables spans.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	invocations, err := meter.Int64Counter(
		"cwmanager.dispatch.invocations",
		metric.WithDescription("Number of dispatched requests"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"cwmanager.dispatch.failures",
		metric.WithDescription("Number of dispatched requests that returned an error envelope"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		"cwmanager.dispatch.latency",
		metric.WithDescription("Dispatch latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// NewGlobalObserver creates an observer from the global meter and tracer providers.
// It records nothing until the host installs real providers.
func NewGlobalObserver() (*Observer, error) {
	return NewObserver(
		otel.GetMeterProvider().Meter(InstrumentationName),
		otel.GetTracerProvider().Tracer(InstrumentationName),
	)
}

// ObserveDispatch implements dispatch.Observer.
func (o *Observer) ObserveDispatch(ctx context.Context, observation dispatch.Observation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("kind", observation.Kind),
		attribute.String("registration", observation.Registration),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(observation.ErrorKind)))
	}

	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, observation.Duration.Seconds(), options)

	if !observation.Success {
		o.failures.Add(ctx, 1, options)
	}

	if o.tracer == nil {
		return
	}

	_, span := o.tracer.Start(ctx, "dispatch."+observation.Kind,
		trace.WithTimestamp(observation.Started),
		trace.WithAttributes(attrs...),
		trace.WithAttributes(
			attribute.String("request_id", observation.ID),
			attribute.String("identifier", observation.Identifier),
		),
	)

	if observation.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(observation.ErrorKind))
	}

	span.End(trace.WithTimestamp(observation.Started.Add(observation.Duration)))
}

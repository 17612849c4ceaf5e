package observability

import (
	"context"

	"gatekeeper/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentedLimiter wraps a ratelimit.Limiter with OpenTelemetry metrics:
// a decision counter partitioned by tier and outcome, a histogram of the
// adaptive multiplier, and observable gauges for live bucket and identifier
// counts. The decision path stays synchronous and in-memory; only metric
// recording is added.
type InstrumentedLimiter struct {
	inner      *ratelimit.Limiter
	decisions  metric.Int64Counter
	multiplier metric.Float64Histogram
}

// NewInstrumentedLimiter creates a limiter wrapper that records decision
// metrics for every call.
func NewInstrumentedLimiter(inner *ratelimit.Limiter) (*InstrumentedLimiter, error) {
	meter := otel.Meter("gatekeeper/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	multiplier, err := meter.Float64Histogram(
		"ratelimit.adaptive.multiplier",
		metric.WithDescription("Adaptive multiplier applied to tier limits"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	buckets, err := meter.Int64ObservableGauge(
		"ratelimit.buckets",
		metric.WithDescription("Live token buckets in the store"),
		metric.WithUnit("{bucket}"),
	)
	if err != nil {
		return nil, err
	}

	identifiers, err := meter.Int64ObservableGauge(
		"ratelimit.identifiers",
		metric.WithDescription("Identifiers with retained request history"),
		metric.WithUnit("{identifier}"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := inner.Stats()
		o.ObserveInt64(buckets, int64(stats.Buckets))
		o.ObserveInt64(identifiers, int64(stats.TrackedIdentifiers))
		return nil
	}, buckets, identifiers)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:      inner,
		decisions:  decisions,
		multiplier: multiplier,
	}, nil
}

// Decide delegates to the wrapped limiter and records the outcome.
func (l *InstrumentedLimiter) Decide(identifier string) ratelimit.Decision {
	d := l.inner.Decide(identifier)

	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
	}
	attrs := metric.WithAttributes(
		attribute.String("tier", d.Tier.Name),
		attribute.String("outcome", outcome),
	)

	ctx := context.Background()
	l.decisions.Add(ctx, 1, attrs)
	l.multiplier.Record(ctx, d.Multiplier, metric.WithAttributes(attribute.String("tier", d.Tier.Name)))

	return d
}

// Compile-time interface verification.
var _ ratelimit.Decider = (*InstrumentedLimiter)(nil)

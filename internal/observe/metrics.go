// Package observe provides application-wide observability primitives for
// kousei: OpenTelemetry metrics, structured logging helpers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kousei metrics.
const meterName = "github.com/hokomura/kousei"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// SegmentDuration tracks end-to-end correction latency per segment,
	// including any remote call.
	SegmentDuration metric.Float64Histogram

	// RemoteDuration tracks remote model call latency.
	RemoteDuration metric.Float64Histogram

	// SegmentsProcessed counts corrected segments. Use with attribute:
	//   attribute.String("source", "file"|"batch"|"web")
	SegmentsProcessed metric.Int64Counter

	// Escalations counts segments sent to the remote model. Use with attribute:
	//   attribute.String("outcome", "accepted"|"unchanged"|"failed"|"skipped")
	Escalations metric.Int64Counter

	// RemoteErrors counts failed remote calls. Use with attribute:
	//   attribute.String("provider", ...)
	RemoteErrors metric.Int64Counter

	// TokensUsed counts tokens consumed by remote calls. Use with attribute:
	//   attribute.String("direction", "input"|"output")
	TokensUsed metric.Int64Counter

	// EstimatedCost accumulates the estimated remote spend in USD.
	EstimatedCost metric.Float64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Rule-only
// segments finish in microseconds while remote calls can take several seconds,
// so the range is wide.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SegmentDuration, err = m.Float64Histogram("kousei.segment.duration",
		metric.WithDescription("End-to-end correction latency per segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RemoteDuration, err = m.Float64Histogram("kousei.remote.duration",
		metric.WithDescription("Latency of remote model correction calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SegmentsProcessed, err = m.Int64Counter("kousei.segments.processed",
		metric.WithDescription("Total corrected segments by source."),
	); err != nil {
		return nil, err
	}
	if met.Escalations, err = m.Int64Counter("kousei.escalations",
		metric.WithDescription("Total segments escalated to the remote model, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.RemoteErrors, err = m.Int64Counter("kousei.remote.errors",
		metric.WithDescription("Total failed remote correction calls by provider."),
	); err != nil {
		return nil, err
	}
	if met.TokensUsed, err = m.Int64Counter("kousei.tokens.used",
		metric.WithDescription("Total tokens consumed by remote calls, by direction."),
	); err != nil {
		return nil, err
	}
	if met.EstimatedCost, err = m.Float64Counter("kousei.cost.usd",
		metric.WithDescription("Estimated remote spend in USD."),
		metric.WithUnit("{usd}"),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("kousei.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSegment records one processed segment with its correction latency.
func (m *Metrics) RecordSegment(ctx context.Context, source string, seconds float64) {
	m.SegmentsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
	m.SegmentDuration.Record(ctx, seconds)
}

// RecordEscalation records an escalation attempt and its outcome.
func (m *Metrics) RecordEscalation(ctx context.Context, outcome string) {
	m.Escalations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordRemoteError records a failed remote call for the given provider.
func (m *Metrics) RecordRemoteError(ctx context.Context, provider string) {
	m.RemoteErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordUsage records token consumption and the resulting estimated cost.
func (m *Metrics) RecordUsage(ctx context.Context, inputTokens, outputTokens int, costUSD float64) {
	m.TokensUsed.Add(ctx, int64(inputTokens),
		metric.WithAttributes(attribute.String("direction", "input")),
	)
	m.TokensUsed.Add(ctx, int64(outputTokens),
		metric.WithAttributes(attribute.String("direction", "output")),
	)
	if costUSD > 0 {
		m.EstimatedCost.Add(ctx, costUSD)
	}
}

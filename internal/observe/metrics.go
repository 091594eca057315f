// Package observe provides the observability primitives for Periodix:
// OpenTelemetry metrics, tracing, trace-enriched logging, and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped from
// /metrics through the Prometheus exporter bridge set up by [InitProvider].
// Tests should use [NewMetrics] with their own [metric.MeterProvider] rather
// than [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Periodix metrics.
const meterName = "github.com/MrWong99/periodix"

// Metrics holds all metric instruments for the application. All fields are
// safe for concurrent use.
type Metrics struct {
	// NarrationDuration tracks end-to-end narration latency, from prompt to
	// base64 payload. Attribute: status.
	NarrationDuration metric.Float64Histogram

	// ProviderRequests counts speech provider calls. Attributes: provider,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed speech provider calls. Attributes:
	// provider, kind.
	ProviderErrors metric.Int64Counter

	// QuestionsGenerated counts generated questions. Attribute: mode.
	QuestionsGenerated metric.Int64Counter

	// ActiveSessions tracks open websocket UI sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Speech synthesis of a
// paragraph routinely takes several seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.NarrationDuration, err = m.Float64Histogram("periodix.narration.duration",
		metric.WithDescription("Latency of narration synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("periodix.provider.requests",
		metric.WithDescription("Total speech provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("periodix.provider.errors",
		metric.WithDescription("Total speech provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.QuestionsGenerated, err = m.Int64Counter("periodix.questions.generated",
		metric.WithDescription("Total generated questions by mode."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("periodix.active_sessions",
		metric.WithDescription("Number of open UI sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("periodix.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, created on
// first use from [otel.GetMeterProvider]. Call it only after [InitProvider]
// so the instruments bind to the Prometheus-backed provider.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordNarration records one narration request. A nil error is recorded
// as status "ok".
func (m *Metrics) RecordNarration(ctx context.Context, d time.Duration, err error) {
	m.NarrationDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status(err))),
	)
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordQuestions adds n generated questions for mode.
func (m *Metrics) RecordQuestions(ctx context.Context, mode string, n int) {
	m.QuestionsGenerated.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

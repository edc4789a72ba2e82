// Package observe provides application-wide observability primitives for
// mirrorpen: OpenTelemetry metrics, distributed tracing, and the provider
// bridge that exposes them for Prometheus scraping.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all mirrorpen metrics.
const meterName = "github.com/mirrorpen/mirrorpen"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RewriteDuration tracks rewriting-service request latency.
	RewriteDuration metric.Float64Histogram

	// ChunkDuration tracks end-to-end per-chunk processing latency.
	ChunkDuration metric.Float64Histogram

	// RunDuration tracks whole-workflow-run latency.
	RunDuration metric.Float64Histogram

	// --- Distributions ---

	// BatchSize tracks the batch size actually submitted per request, so the
	// degradation chain's behaviour is visible in production.
	BatchSize metric.Int64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// BatchRetries counts batch retry attempts.
	BatchRetries metric.Int64Counter

	// SentencesFailed counts sentences whose every rewrite attempt failed
	// and that were preserved verbatim.
	SentencesFailed metric.Int64Counter

	// ChunksFailed counts chunks preserved verbatim after a catastrophic
	// failure.
	ChunksFailed metric.Int64Counter

	// ReplacementsRejected counts replacements dropped by validation. Use
	// with attribute: attribute.String("reason", ...)
	ReplacementsRejected metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks the number of workflow runs currently in flight.
	ActiveRuns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM-bound batch requests, which routinely take tens of seconds.
var latencyBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 15, 20, 30, 40, 60, 90, 120,
}

// batchSizeBuckets mirrors the degradation chain values.
var batchSizeBuckets = []float64{1, 2, 5, 10, 15, 20, 25}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RewriteDuration, err = m.Float64Histogram("mirrorpen.rewrite.duration",
		metric.WithDescription("Latency of rewriting-service batch requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChunkDuration, err = m.Float64Histogram("mirrorpen.chunk.duration",
		metric.WithDescription("End-to-end per-chunk processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("mirrorpen.run.duration",
		metric.WithDescription("Whole-workflow-run latency."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.BatchSize, err = m.Int64Histogram("mirrorpen.batch.size",
		metric.WithDescription("Sentence count of each submitted rewrite batch."),
		metric.WithExplicitBucketBoundaries(batchSizeBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("mirrorpen.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.BatchRetries, err = m.Int64Counter("mirrorpen.batch.retries",
		metric.WithDescription("Total batch retry attempts."),
	); err != nil {
		return nil, err
	}
	if met.SentencesFailed, err = m.Int64Counter("mirrorpen.sentences.failed",
		metric.WithDescription("Sentences preserved verbatim after all rewrite attempts failed."),
	); err != nil {
		return nil, err
	}
	if met.ChunksFailed, err = m.Int64Counter("mirrorpen.chunks.failed",
		metric.WithDescription("Chunks preserved verbatim after a catastrophic failure."),
	); err != nil {
		return nil, err
	}
	if met.ReplacementsRejected, err = m.Int64Counter("mirrorpen.replacements.rejected",
		metric.WithDescription("Replacements dropped by validation, by reason."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("mirrorpen.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRuns, err = m.Int64UpDownCounter("mirrorpen.active_runs",
		metric.WithDescription("Number of workflow runs currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("mirrorpen.http.request.duration",
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordBatch records one submitted batch: its size and its latency in
// seconds.
func (m *Metrics) RecordBatch(ctx context.Context, size int, seconds float64) {
	m.BatchSize.Record(ctx, int64(size))
	m.RewriteDuration.Record(ctx, seconds)
}

// RecordRejectedReplacement records a validation rejection by reason.
func (m *Metrics) RecordRejectedReplacement(ctx context.Context, reason string) {
	m.ReplacementsRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

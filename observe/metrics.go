// Package observe wires OpenTelemetry metrics and tracing into the analysis
// service. Metrics are exported through a Prometheus bridge set up by
// [InitProvider]; tests should build [Metrics] from their own
// [metric.MeterProvider] via [NewMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/RyanBlaney/sonido-vocal"

// Metrics holds the OpenTelemetry instruments for the service. All fields are
// safe for concurrent use.
type Metrics struct {
	// AnalysisDuration tracks end-to-end feature extraction latency.
	AnalysisDuration metric.Float64Histogram

	// StageDuration tracks per-stage latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// DecodeDuration tracks upload decoding latency. Use with attribute:
	//   attribute.String("format", ...)
	DecodeDuration metric.Float64Histogram

	// Analyses counts finished analyses. Use with attribute:
	//   attribute.String("status", ...)
	Analyses metric.Int64Counter

	// StoreOperations counts persistence calls. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	StoreOperations metric.Int64Counter

	// ActiveAnalyses tracks analyses currently running.
	ActiveAnalyses metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for offline
// analysis of recordings from a few seconds to several minutes long.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("sonido.analysis.duration",
		metric.WithDescription("Latency of feature extraction for one recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("sonido.analysis.stage.duration",
		metric.WithDescription("Latency of one analysis stage by stage name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("sonido.decode.duration",
		metric.WithDescription("Latency of decoding an upload to PCM by format."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Analyses, err = m.Int64Counter("sonido.analyses",
		metric.WithDescription("Total analyses by status."),
	); err != nil {
		return nil, err
	}
	if met.StoreOperations, err = m.Int64Counter("sonido.store.operations",
		metric.WithDescription("Total persistence operations by op and status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveAnalyses, err = m.Int64UpDownCounter("sonido.active_analyses",
		metric.WithDescription("Number of analyses in progress."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("sonido.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider].
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

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordAnalysis records a finished analysis and its total duration.
func (m *Metrics) RecordAnalysis(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Analyses.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordDecode records how long an upload took to decode.
func (m *Metrics) RecordDecode(ctx context.Context, format string, d time.Duration) {
	m.DecodeDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("format", format)),
	)
}

// RecordStoreOp counts one persistence call.
func (m *Metrics) RecordStoreOp(ctx context.Context, op, status string) {
	m.StoreOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

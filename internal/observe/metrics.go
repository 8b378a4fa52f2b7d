// Package observe holds the recorder's OpenTelemetry instruments and the
// Prometheus bridge that exposes them on /metrics.
//
// Components take a *Metrics and tolerate nil, so tests and the offline CLI
// can run without a provider. Tests should build their own instance with
// NewMetrics and a ManualReader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ankogit/4duk-recorder"

// Metrics holds all instruments. The OTel types synchronise internally.
type Metrics struct {
	// Pages counts emitted container pages. Attribute "format".
	Pages metric.Int64Counter

	// Bytes counts container bytes handed to sinks. Attribute "format".
	Bytes metric.Int64Counter

	// Packets counts compressed packets produced by the codec.
	Packets metric.Int64Counter

	// CodecErrors counts failed resample or compress calls. Attribute "op".
	CodecErrors metric.Int64Counter

	// ActiveRecordings tracks recordings that have started and not stopped.
	ActiveRecordings metric.Int64UpDownCounter

	// EncodeDuration is the time spent resampling and compressing one frame.
	EncodeDuration metric.Float64Histogram
}

// frame encode latencies sit well under the 20 ms frame period
var encodeBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Pages, err = m.Int64Counter("recorder.pages",
		metric.WithDescription("Container pages emitted."),
	); err != nil {
		return nil, err
	}
	if met.Bytes, err = m.Int64Counter("recorder.bytes",
		metric.WithDescription("Container bytes written."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.Packets, err = m.Int64Counter("recorder.packets",
		metric.WithDescription("Compressed audio packets produced."),
	); err != nil {
		return nil, err
	}
	if met.CodecErrors, err = m.Int64Counter("recorder.codec.errors",
		metric.WithDescription("Codec failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecordings, err = m.Int64UpDownCounter("recorder.active_recordings",
		metric.WithDescription("Recordings currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("recorder.encode.duration",
		metric.WithDescription("Time to resample and compress one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(encodeBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level instance built on the global meter
// provider. Call InitProvider first if the values should be exported.
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

// RecordPages adds emitted pages and their total size.
func (m *Metrics) RecordPages(ctx context.Context, format string, pages [][]byte) {
	if m == nil || len(pages) == 0 {
		return
	}
	var n int64
	for _, p := range pages {
		n += int64(len(p))
	}
	attrs := metric.WithAttributes(attribute.String("format", format))
	m.Pages.Add(ctx, int64(len(pages)), attrs)
	m.Bytes.Add(ctx, n, attrs)
}

// RecordPacket counts one packet and the time it took to produce.
func (m *Metrics) RecordPacket(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Packets.Add(ctx, 1)
	m.EncodeDuration.Record(ctx, elapsed.Seconds())
}

// RecordCodecError counts a failed codec operation.
func (m *Metrics) RecordCodecError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.CodecErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordingStarted and RecordingStopped move the active recordings gauge.
func (m *Metrics) RecordingStarted(ctx context.Context, format string) {
	if m == nil {
		return
	}
	m.ActiveRecordings.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

func (m *Metrics) RecordingStopped(ctx context.Context, format string) {
	if m == nil {
		return
	}
	m.ActiveRecordings.Add(ctx, -1, metric.WithAttributes(attribute.String("format", format)))
}

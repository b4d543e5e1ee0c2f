// Package metrics exposes Prometheus metrics for the batch encoder.
//
// Metrics are registered on the default registry when the package is
// loaded. A Collector binds them to one pipeline name:
//
//	c := metrics.NewCollector("spans")
//	timer := metrics.NewTimer("encode")
//	arr := encode(batch)
//	c.ObserveStage("encode", timer.Stop())
//	c.RowsEncoded(arr.Len())
//
// Handler serves the registry in the Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	// RowsEncoded counts rows appended to struct arrays.
	// Labels: pipeline
	RowsEncoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structenc_rows_encoded_total",
			Help: "Total number of rows encoded",
		},
		[]string{"pipeline"},
	)

	// Batches counts finished batches by outcome.
	// Labels: pipeline, outcome (written/skipped/failed)
	Batches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structenc_batches_total",
			Help: "Total number of batches by outcome",
		},
		[]string{"pipeline", "outcome"},
	)

	// RejectedValues counts values that could not be appended.
	// Labels: pipeline, field
	RejectedValues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structenc_rejected_values_total",
			Help: "Total number of rejected field values",
		},
		[]string{"pipeline", "field"},
	)

	// ElidedFields counts fields left out of a finished struct array.
	// Labels: pipeline, field
	ElidedFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structenc_elided_fields_total",
			Help: "Total number of struct fields elided for lack of data",
		},
		[]string{"pipeline", "field"},
	)

	// BytesWritten counts payload bytes handed to a sink.
	// Labels: pipeline, sink
	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structenc_bytes_written_total",
			Help: "Total payload bytes written to sinks",
		},
		[]string{"pipeline", "sink"},
	)

	// StageLatency tracks per batch stage durations in seconds.
	// Labels: pipeline, stage (encode/serialize/compress/put)
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "structenc_stage_latency_seconds",
			Help:    "Batch stage latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 9), // 100µs .. ~6.5s
		},
		[]string{"pipeline", "stage"},
	)

	// InFlightBatches tracks batches currently held by workers.
	InFlightBatches = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structenc_in_flight_batches",
			Help: "Number of batches being encoded",
		},
		[]string{"pipeline"},
	)

	// ProcessResources tracks sampled resource usage of the encoder process.
	// Labels: resource (cpu_percent/rss_bytes/goroutines/threads)
	ProcessResources = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structenc_process_resource",
			Help: "Sampled resource usage of the encoder process",
		},
		[]string{"resource"},
	)
)

// Collector records the metrics of one pipeline. It is safe for concurrent
// use.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a collector labelling every metric with pipeline.
func NewCollector(pipeline string) *Collector {
	return &Collector{name: pipeline, startTime: time.Now()}
}

// Pipeline returns the pipeline label.
func (c *Collector) Pipeline() string { return c.name }

// Uptime returns the time since the collector was created.
func (c *Collector) Uptime() time.Duration { return time.Since(c.startTime) }

// RowsEncoded adds n encoded rows.
func (c *Collector) RowsEncoded(n int) {
	RowsEncoded.WithLabelValues(c.name).Add(float64(n))
}

// BatchWritten records a batch of size bytes delivered to sink.
func (c *Collector) BatchWritten(sink string, size int) {
	Batches.WithLabelValues(c.name, OutcomeWritten).Inc()
	BytesWritten.WithLabelValues(c.name, sink).Add(float64(size))
}

// BatchSkipped records a batch with no materialized fields.
func (c *Collector) BatchSkipped() {
	Batches.WithLabelValues(c.name, OutcomeSkipped).Inc()
}

// BatchFailed records a batch that returned an error.
func (c *Collector) BatchFailed() {
	Batches.WithLabelValues(c.name, OutcomeFailed).Inc()
}

// Rejected records a rejected value of field.
func (c *Collector) Rejected(field string) {
	RejectedValues.WithLabelValues(c.name, field).Inc()
}

// Elided records that field was left out of a batch.
func (c *Collector) Elided(field string) {
	ElidedFields.WithLabelValues(c.name, field).Inc()
}

// ObserveStage records how long stage took for one batch.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	StageLatency.WithLabelValues(c.name, stage).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the function that
// decrements it.
func (c *Collector) TrackInFlight() func() {
	g := InFlightBatches.WithLabelValues(c.name)
	g.Inc()
	return g.Dec
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

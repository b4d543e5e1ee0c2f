package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// BatchSpanName is the name of the span covering one encoded batch.
const BatchSpanName = "encode_batch"

// BatchTracer traces and measures encoded batches of one pipeline.
type BatchTracer struct {
	pipeline string
	tracer   trace.Tracer
	rows     metric.Int64Histogram
	bytes    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewBatchTracer creates a BatchTracer. Nil providers fall back to the
// global ones.
func NewBatchTracer(pipeline string, tp trace.TracerProvider, mp metric.MeterProvider) (*BatchTracer, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)

	rows, err := meter.Int64Histogram("structenc.batch.rows",
		metric.WithDescription("Rows per encoded batch"),
		metric.WithUnit("{row}"))
	if err != nil {
		return nil, err
	}
	bytes, err := meter.Int64Counter("structenc.batch.bytes",
		metric.WithDescription("Payload bytes written"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("structenc.batch.duration",
		metric.WithDescription("Time to encode and deliver one batch"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &BatchTracer{
		pipeline: pipeline,
		tracer:   tp.Tracer(InstrumentationName),
		rows:     rows,
		bytes:    bytes,
		duration: duration,
	}, nil
}

// BatchSpan covers one batch. It is owned by a single goroutine.
type BatchSpan struct {
	bt    *BatchTracer
	ctx   context.Context
	span  trace.Span
	start time.Time
	rows  int
	size  int
}

// Start opens the span of batch seq holding rows rows.
func (bt *BatchTracer) Start(ctx context.Context, seq int64, rows int) (context.Context, *BatchSpan) {
	ctx, span := bt.tracer.Start(ctx, BatchSpanName,
		trace.WithAttributes(
			attribute.String("pipeline", bt.pipeline),
			attribute.Int64("batch.seq", seq),
			attribute.Int("batch.rows", rows),
		))
	return ctx, &BatchSpan{bt: bt, ctx: ctx, span: span, start: time.Now(), rows: rows}
}

// SetFields records how many fields were materialized and elided.
func (s *BatchSpan) SetFields(materialized, elided int) {
	s.span.SetAttributes(
		attribute.Int("batch.fields", materialized),
		attribute.Int("batch.fields_elided", elided),
	)
}

// SetPayload records the object key and size of the written payload.
func (s *BatchSpan) SetPayload(key string, size int) {
	s.size = size
	s.span.SetAttributes(
		attribute.String("payload.key", key),
		attribute.Int("payload.bytes", size),
	)
}

// AddEvent adds an event to the span
func (s *BatchSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span with err as its status and records the batch metrics.
func (s *BatchSpan) End(err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	attrs := metric.WithAttributes(
		attribute.String("pipeline", s.bt.pipeline),
		attribute.String("status", status),
	)
	s.bt.rows.Record(s.ctx, int64(s.rows), attrs)
	s.bt.duration.Record(s.ctx, time.Since(s.start).Seconds(), attrs)
	if s.size > 0 {
		s.bt.bytes.Add(s.ctx, int64(s.size), attrs)
	}
	s.span.End()
}

// Package pipeline turns a stream of JSON rows into compressed Arrow IPC
// payloads, one struct array per batch.
//
// Rows are grouped into batches in input order and every batch is encoded
// independently by one of a fixed number of workers. Fields that receive no
// data within a batch are elided from that batch's struct type, so batches of
// the same pipeline may carry different subsets of the declared fields.
//
//	enc, err := pipeline.NewEncoder(cfg, snk, pipeline.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	stats, err := enc.Run(ctx, os.Stdin)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/structenc/pkg/compression"
	"github.com/ajitpratap0/structenc/pkg/config"
	"github.com/ajitpratap0/structenc/pkg/encerrors"
	formats "github.com/ajitpratap0/structenc/pkg/formats/columnar"
	"github.com/ajitpratap0/structenc/pkg/logger"
	"github.com/ajitpratap0/structenc/pkg/metrics"
	"github.com/ajitpratap0/structenc/pkg/observability"
	"github.com/ajitpratap0/structenc/pkg/record"
	"github.com/ajitpratap0/structenc/pkg/schema"
	"github.com/ajitpratap0/structenc/pkg/sink"
)

// ErrRejected is wrapped by the error returned when a value is rejected and
// the pipeline is configured to abort, or when the rejected field is not
// nullable.
var ErrRejected = errors.New("value rejected")

// ErrNullNotAllowed is wrapped when a field declared nullable: false receives
// a JSON null or has no key in a row.
var ErrNullNotAllowed = errors.New("null value for non-nullable field")

// Encoder runs one pipeline. Run may be called more than once, sequentially;
// batch numbering restarts at zero on every call.
type Encoder struct {
	name         string
	batchSize    int
	workers      int
	nullOnReject bool

	schema     *schema.Schema
	sink       sink.Sink
	compressor compression.Compressor
	writerCfg  formats.WriterConfig

	mem       memory.Allocator
	logger    *zap.Logger
	collector *metrics.Collector
	tracer    *observability.BatchTracer

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Encoder) { e.logger = l }
}

// WithAllocator sets the allocator used for all Arrow buffers.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *Encoder) { e.mem = mem }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Encoder) { e.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Encoder) { e.meterProvider = mp }
}

// NewEncoder validates cfg and prepares an encoder writing to snk.
func NewEncoder(cfg *config.Config, snk sink.Sink, opts ...Option) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sch, err := schema.Compile(cfg.Schema)
	if err != nil {
		return nil, err
	}

	algo, err := compression.ParseAlgorithm(cfg.Output.Compression)
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeConfig, "invalid output compression")
	}
	comp, err := compression.NewCompressor(algo, compression.Default)
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeConfig, "cannot create compressor")
	}
	body, err := formats.ParseBodyCompression(cfg.Output.IPCCompression)
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeConfig, "invalid ipc compression")
	}

	e := &Encoder{
		name:         cfg.Pipeline.Name,
		batchSize:    cfg.Pipeline.BatchSize,
		workers:      cfg.Pipeline.Workers,
		nullOnReject: cfg.Pipeline.OnReject == config.OnRejectNull,
		schema:       sch,
		sink:         snk,
		compressor:   comp,
		mem:          memory.DefaultAllocator,
		logger:       zap.NewNop(),
		collector:    metrics.NewCollector(cfg.Pipeline.Name),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.writerCfg = formats.WriterConfig{
		Format:      formats.ArrowStream,
		Compression: body,
		Allocator:   e.mem,
	}
	e.tracer, err = observability.NewBatchTracer(e.name, e.tracerProvider, e.meterProvider)
	if err != nil {
		return nil, encerrors.Wrap(err, encerrors.ErrorTypeInternal, "cannot create batch instruments")
	}
	return e, nil
}

// Schema returns the compiled schema.
func (e *Encoder) Schema() *schema.Schema { return e.schema }

// Run encodes every row read from r. It stops at the first failed batch, or
// when ctx is canceled, and returns the counters accumulated so far.
func (e *Encoder) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var st stats
	ctx = logger.WithPipeline(ctx, e.name)
	log := logger.FromContext(ctx, e.logger)

	log.Info("pipeline started",
		zap.Int("fields", e.schema.NumFields()),
		zap.String("schema_fingerprint", e.schema.Fingerprint()),
		zap.Int("batch_size", e.batchSize),
		zap.Int("workers", e.workers),
		zap.String("sink", e.sink.Name()),
	)

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan batch, e.workers)

	g.Go(func() error {
		return readBatches(gctx, r, e.batchSize, batches)
	})
	for w := 0; w < e.workers; w++ {
		g.Go(func() error {
			for b := range batches {
				if err := e.encodeBatch(gctx, b, &st); err != nil {
					e.collector.BatchFailed()
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	snapshot := st.snapshot()
	if err != nil {
		log.Error("pipeline failed", zap.Error(err), zap.Object("stats", snapshot))
		return snapshot, err
	}
	log.Info("pipeline finished", zap.Object("stats", snapshot))
	return snapshot, nil
}

// ObjectKey returns the sink key of batch seq.
func (e *Encoder) ObjectKey(seq int64) string {
	return fmt.Sprintf("%s-%06d%s%s", e.name, seq,
		formats.GetFormatInfo(formats.ArrowStream).FileExtension, e.compressor.Extension())
}

func (e *Encoder) encodeBatch(ctx context.Context, b batch, st *stats) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer e.collector.TrackInFlight()()

	ctx = logger.WithBatch(ctx, b.seq)
	log := logger.FromContext(ctx, e.logger)
	ctx, span := e.tracer.Start(ctx, b.seq, len(b.rows))
	defer func() { span.End(err) }()

	timer := metrics.NewTimer("encode")
	arr, err := e.buildStruct(b, st, log)
	if err != nil {
		return err
	}
	defer arr.Release()
	e.collector.ObserveStage("encode", timer.Stop())
	e.collector.RowsEncoded(len(b.rows))
	st.rows.Add(int64(len(b.rows)))

	st.elided.Add(int64(e.recordElided(arr.DataType().(*arrow.StructType))))
	span.SetFields(arr.NumField(), e.schema.NumFields()-arr.NumField())

	if arr.NumField() == 0 {
		log.Debug("batch skipped, no field received data", zap.Int("rows", len(b.rows)))
		span.AddEvent("skipped")
		st.skipped.Add(1)
		e.collector.BatchSkipped()
		return nil
	}

	timer = metrics.NewTimer("serialize")
	wcfg := e.writerCfg
	wcfg.Metadata = map[string]string{
		formats.MetaPipeline:    e.name,
		formats.MetaFingerprint: e.schema.Fingerprint(),
		formats.MetaBatch:       strconv.FormatInt(b.seq, 10),
	}
	payload, err := formats.Encode(arr, &wcfg)
	if err != nil {
		return err
	}
	e.collector.ObserveStage("serialize", timer.Stop())

	timer = metrics.NewTimer("compress")
	payload, err = e.compressor.Compress(payload)
	if err != nil {
		return encerrors.Wrap(err, encerrors.ErrorTypeEncoding, "failed to compress payload").
			WithDetail("algorithm", string(e.compressor.Algorithm()))
	}
	e.collector.ObserveStage("compress", timer.Stop())

	key := e.ObjectKey(b.seq)
	timer = metrics.NewTimer("put")
	if err := e.sink.Put(ctx, key, payload); err != nil {
		return err
	}
	e.collector.ObserveStage("put", timer.Stop())
	e.collector.BatchWritten(e.sink.Name(), len(payload))
	span.SetPayload(key, len(payload))

	st.written.Add(1)
	st.bytes.Add(int64(len(payload)))
	log.Debug("batch written",
		zap.String("key", key),
		zap.Int("rows", len(b.rows)),
		zap.Int("fields", arr.NumField()),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// buildStruct appends every row of b and finishes the struct array.
func (e *Encoder) buildStruct(b batch, st *stats, log *zap.Logger) (*array.Struct, error) {
	sb, err := e.schema.NewStructBuilder(e.mem, record.WithLogger(log))
	if err != nil {
		return nil, err
	}

	for r, row := range b.rows {
		for i := 0; i < e.schema.NumFields(); i++ {
			f := e.schema.Field(i)
			err := appendValue(sb, i, f, row[f.Name], e.nullOnReject)
			if err == nil {
				continue
			}
			rowNum := b.firstRow + int64(r)
			if !e.nullOnReject || !f.Nullable {
				sb.Release()
				return nil, encerrors.Wrap(fmt.Errorf("%w: %w", ErrRejected, err), encerrors.ErrorTypeData,
					"batch aborted").
					WithDetail("field", f.Name).
					WithDetail("row", rowNum)
			}
			st.rejected.Add(1)
			e.collector.Rejected(f.Name)
			log.Warn("value rejected, appending null",
				zap.String("field", f.Name),
				zap.Int64("row", rowNum),
				zap.Error(err),
			)
		}
	}

	return sb.Finish()
}

func (e *Encoder) recordElided(st *arrow.StructType) int {
	n := 0
	for i := 0; i < e.schema.NumFields(); i++ {
		name := e.schema.Field(i).Name
		if _, ok := st.FieldIdx(name); !ok {
			e.collector.Elided(name)
			n++
		}
	}
	return n
}

// Package structenc encodes streams of JSON rows into Arrow struct arrays
// whose layout adapts to the data of every batch.
//
// A pipeline declares an ordered list of typed fields. Each batch of rows is
// appended to one fresh struct builder holding a column builder per field.
// When the batch is finished, a field whose builder never received a value
// is left out of the struct type entirely, so sparse telemetry does not pay
// for all-null columns. String, binary and fixed size binary fields may be
// dictionary encoded, with the index width chosen from the observed
// cardinality.
//
// # Architecture
//
// The encoder is built in layers:
//
// 1. Column builders (pkg/columnar) are lazy: nothing is allocated until the
// first value arrives, and a builder that only saw nulls reports no data.
//
// 2. The struct builder (pkg/record) owns one column builder per field and
// hands out typed access by index through FieldBuilder and
// CheckedFieldBuilder.
//
// 3. The pipeline (internal/pipeline) batches rows, converts JSON values to
// field values, encodes each finished struct as an Arrow IPC stream and
// delivers it to a sink.
//
// # Quick Start
//
//	cfg, err := config.NewLoader().Load("spans.yaml")
//	if err != nil {
//	    return err
//	}
//	snk, err := sink.New(ctx, cfg.Output, logger)
//	if err != nil {
//	    return err
//	}
//	enc, err := pipeline.NewEncoder(cfg, snk, pipeline.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	stats, err := enc.Run(ctx, os.Stdin)
//
// Or from the command line:
//
//	structenc encode --config spans.yaml --input spans.jsonl.zst
//	structenc inspect out/spans-000000.arrows.zst
//
// # Key Packages
//
//	pkg/columnar         - Adaptive column builders and the Kind tagged union
//	pkg/record           - Struct builder with empty field elision
//	pkg/schema           - Declarative field lists compiled into builders
//	pkg/formats/columnar - Arrow IPC stream and file encoding
//	pkg/compression      - Payload compression (gzip, zstd, lz4, snappy, s2)
//	pkg/sink             - File, S3, GCS and Kafka destinations
//	pkg/config           - YAML configuration with environment overrides
//	pkg/encerrors        - Structured error handling
//	pkg/logger           - Structured logging
//	pkg/metrics          - Prometheus metrics
//	pkg/observability    - OpenTelemetry tracing
//
// # Configuration
//
// Configuration is read from YAML. Every key can be overridden from the
// environment with the STRUCTENC_ prefix, for example
// STRUCTENC_PIPELINE_WORKERS=4, and string values may reference environment
// variables with ${VAR_NAME} syntax.
package structenc

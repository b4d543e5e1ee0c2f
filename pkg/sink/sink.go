// Package sink delivers encoded batch payloads to their destination.
package sink

import (
	"context"
	"errors"
	"path"

	"go.uber.org/zap"

	"github.com/ajitpratap0/structenc/pkg/config"
	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

// ErrUnknownSink is returned by New for an unsupported sink name.
var ErrUnknownSink = errors.New("unknown sink")

// Sink stores payloads under object keys. Put may be called from several
// goroutines at once.
type Sink interface {
	Put(ctx context.Context, key string, payload []byte) error
	// Name is the configured sink name, used as a metric label
	Name() string
	Close() error
}

// New creates the sink selected by cfg.Sink.
func New(ctx context.Context, cfg config.OutputConfig, logger *zap.Logger) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("sink", cfg.Sink))

	switch cfg.Sink {
	case config.SinkFile:
		return NewFileSink(cfg.File, logger)
	case config.SinkS3:
		return NewS3Sink(ctx, cfg.S3, logger)
	case config.SinkGCS:
		return NewGCSSink(ctx, cfg.GCS, logger)
	case config.SinkKafka:
		return NewKafkaSink(cfg.Kafka, logger)
	default:
		return nil, encerrors.Wrap(ErrUnknownSink, encerrors.ErrorTypeConfig, "cannot create sink").
			WithDetail("sink", cfg.Sink)
	}
}

func objectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// putError classifies a failed Put. A deadline that expired while the
// payload was in flight is a timeout; anything else is a sink error.
func putError(err error, sink, key string) error {
	errType := encerrors.ErrorTypeSink
	if errors.Is(err, context.DeadlineExceeded) {
		errType = encerrors.ErrorTypeTimeout
	}
	return encerrors.Wrap(err, errType, "failed to put payload").
		WithDetail("sink", sink).
		WithDetail("key", key)
}

func connectError(err error, sink, message string) *encerrors.Error {
	return encerrors.Wrap(err, encerrors.ErrorTypeConnection, message).
		WithDetail("sink", sink)
}

package sink

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/structenc/pkg/config"
)

var _ Sink = (*GCSSink)(nil)

// ObjectWriterFunc opens a writer for a new object. Closing the writer
// commits the object.
type ObjectWriterFunc func(ctx context.Context, bucket, object string) io.WriteCloser

// GCSSink writes payloads as Cloud Storage objects.
type GCSSink struct {
	open   ObjectWriterFunc
	close  func() error
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCSSink creates a storage client with default credentials unless a
// credentials file is configured.
func NewGCSSink(ctx context.Context, cfg config.GCSConfig, logger *zap.Logger) (*GCSSink, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, connectError(err, config.SinkGCS, "failed to create GCS client")
	}

	logger.Info("gcs sink created", zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix))

	s := NewGCSSinkWithWriter(func(ctx context.Context, bucket, object string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}, cfg, logger)
	s.close = client.Close
	return s, nil
}

// NewGCSSinkWithWriter creates a GCSSink that opens objects with open.
func NewGCSSinkWithWriter(open ObjectWriterFunc, cfg config.GCSConfig, logger *zap.Logger) *GCSSink {
	return &GCSSink{
		open:   open,
		close:  func() error { return nil },
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}
}

func (s *GCSSink) Put(ctx context.Context, key string, payload []byte) error {
	object := objectKey(s.prefix, key)
	w := s.open(ctx, s.bucket, object)
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return putError(err, config.SinkGCS, object)
	}
	if err := w.Close(); err != nil {
		return putError(err, config.SinkGCS, object)
	}
	s.logger.Debug("payload uploaded", zap.String("object", object), zap.Int("bytes", len(payload)))
	return nil
}

func (s *GCSSink) Name() string { return config.SinkGCS }

func (s *GCSSink) Close() error { return s.close() }

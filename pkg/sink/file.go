package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/structenc/pkg/config"
)

var _ Sink = (*FileSink)(nil)

// FileSink writes each payload to its own file under a directory.
type FileSink struct {
	dir    string
	prefix string
	logger *zap.Logger
}

// NewFileSink creates the directory if needed.
func NewFileSink(cfg config.FileConfig, logger *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	logger.Info("file sink created", zap.String("dir", cfg.Dir))
	return &FileSink{dir: cfg.Dir, prefix: cfg.Prefix, logger: logger}, nil
}

// Put writes payload to a temporary file and renames it into place, so
// readers never observe a partial payload.
func (s *FileSink) Put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return putError(err, config.SinkFile, key)
	}
	target := filepath.Join(s.dir, filepath.FromSlash(objectKey(s.prefix, key)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return putError(err, config.SinkFile, key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".structenc-*")
	if err != nil {
		return putError(err, config.SinkFile, key)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return putError(err, config.SinkFile, key)
	}
	if err := tmp.Close(); err != nil {
		return putError(err, config.SinkFile, key)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return putError(err, config.SinkFile, key)
	}

	s.logger.Debug("payload written", zap.String("path", target), zap.Int("bytes", len(payload)))
	return nil
}

func (s *FileSink) Name() string { return config.SinkFile }

func (s *FileSink) Close() error { return nil }

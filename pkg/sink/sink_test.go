package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/structenc/pkg/config"
	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

var payload = []byte("ARROW1 payload")

func TestNewUnknownSink(t *testing.T) {
	_, err := New(context.Background(), config.OutputConfig{Sink: "ftp"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSink)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeConfig))
}

func TestNewFileSinkFromConfig(t *testing.T) {
	s, err := New(context.Background(), config.OutputConfig{
		Sink: config.SinkFile,
		File: config.FileConfig{Dir: t.TempDir()},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, config.SinkFile, s.Name())
	assert.NoError(t, s.Close())
}

func TestFileSinkPut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewFileSink(config.FileConfig{Dir: dir, Prefix: "daily"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "spans-000001.arrows.zst", payload))

	got, err := os.ReadFile(filepath.Join(dir, "daily", "spans-000001.arrows.zst"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	entries, err := os.ReadDir(filepath.Join(dir, "daily"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not linger")
}

func TestFileSinkCanceled(t *testing.T) {
	s, err := NewFileSink(config.FileConfig{Dir: t.TempDir()}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "k", payload), context.Canceled)
}

type fakeUploader struct {
	mu      sync.Mutex
	inputs  []*s3.PutObjectInput
	bodies  [][]byte
	failure error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{Location: "s3://" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)}, nil
}

func TestS3SinkPut(t *testing.T) {
	up := &fakeUploader{}
	s := NewS3SinkWithUploader(up, config.S3Config{Bucket: "telemetry", Prefix: "structenc/spans"}, zaptest.NewLogger(t))

	require.NoError(t, s.Put(context.Background(), "spans-000002.arrows", payload))
	require.Len(t, up.inputs, 1)
	assert.Equal(t, "telemetry", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "structenc/spans/spans-000002.arrows", aws.ToString(up.inputs[0].Key))
	assert.Equal(t, int64(len(payload)), aws.ToInt64(up.inputs[0].ContentLength))
	assert.Equal(t, payload, up.bodies[0])
	assert.Equal(t, config.SinkS3, s.Name())
}

func TestS3SinkPutError(t *testing.T) {
	up := &fakeUploader{failure: errors.New("access denied")}
	s := NewS3SinkWithUploader(up, config.S3Config{Bucket: "telemetry"}, zaptest.NewLogger(t))

	err := s.Put(context.Background(), "k.arrows", payload)
	require.Error(t, err)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeSink))
	assert.Equal(t, "k.arrows", encerrors.GetDetails(err)["key"])
}

func TestPutDeadlineIsTimeout(t *testing.T) {
	up := &fakeUploader{failure: fmt.Errorf("operation error S3: PutObject: %w", context.DeadlineExceeded)}
	s3Sink := NewS3SinkWithUploader(up, config.S3Config{Bucket: "telemetry"}, zaptest.NewLogger(t))

	err := s3Sink.Put(context.Background(), "k.arrows", payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeTimeout))
	assert.False(t, encerrors.IsType(err, encerrors.ErrorTypeSink))

	fileSink, err := NewFileSink(config.FileConfig{Dir: t.TempDir()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	err = fileSink.Put(ctx, "k.arrows", payload)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeTimeout))
	assert.Equal(t, config.SinkFile, encerrors.GetDetails(err)["sink"])
}

func TestNewKafkaSinkUnreachable(t *testing.T) {
	_, err := NewKafkaSink(config.KafkaConfig{
		Brokers:      []string{"127.0.0.1:1"},
		Topic:        "batches",
		ClientID:     "structenc",
		RequiredAcks: -1,
	}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeConnection))
	details := encerrors.GetDetails(err)
	assert.Equal(t, config.SinkKafka, details["sink"])
	assert.Equal(t, []string{"127.0.0.1:1"}, details["brokers"])
}

type memObject struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (m *memObject) Close() error {
	m.closed = true
	return m.closeErr
}

func TestGCSSinkPut(t *testing.T) {
	var (
		gotBucket, gotObject string
		obj                  = &memObject{}
	)
	s := NewGCSSinkWithWriter(func(_ context.Context, bucket, object string) io.WriteCloser {
		gotBucket, gotObject = bucket, object
		return obj
	}, config.GCSConfig{Bucket: "lake", Prefix: "raw"}, zaptest.NewLogger(t))

	require.NoError(t, s.Put(context.Background(), "spans-000003.arrows.lz4", payload))
	assert.Equal(t, "lake", gotBucket)
	assert.Equal(t, "raw/spans-000003.arrows.lz4", gotObject)
	assert.Equal(t, payload, obj.Bytes())
	assert.True(t, obj.closed)
	assert.NoError(t, s.Close())
}

func TestGCSSinkCommitError(t *testing.T) {
	obj := &memObject{closeErr: errors.New("precondition failed")}
	s := NewGCSSinkWithWriter(func(context.Context, string, string) io.WriteCloser { return obj },
		config.GCSConfig{Bucket: "lake"}, zaptest.NewLogger(t))

	err := s.Put(context.Background(), "k", payload)
	require.Error(t, err)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeSink))
}

func TestKafkaSinkPut(t *testing.T) {
	cfg := config.KafkaConfig{Topic: "batches", ClientID: "structenc", RequiredAcks: -1}
	producer := mocks.NewSyncProducer(t, NewSaramaConfig(cfg))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if !bytes.Equal(val, payload) {
			return errors.New("unexpected payload")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := NewKafkaSinkWithProducer(producer, cfg.Topic, zaptest.NewLogger(t))
	require.NoError(t, s.Put(context.Background(), "spans-000004.arrows", payload))

	err := s.Put(context.Background(), "spans-000005.arrows", payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	assert.NoError(t, s.Close())
}

func TestSaramaConfig(t *testing.T) {
	sc := NewSaramaConfig(config.KafkaConfig{ClientID: "enc", RequiredAcks: 1})
	assert.Equal(t, "enc", sc.ClientID)
	assert.Equal(t, sarama.WaitForLocal, sc.Producer.RequiredAcks)
	assert.True(t, sc.Producer.Return.Successes)
	assert.NoError(t, sc.Validate())
}

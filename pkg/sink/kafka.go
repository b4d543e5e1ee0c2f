package sink

import (
	"context"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/structenc/pkg/config"
)

var _ Sink = (*KafkaSink)(nil)

// KafkaSink publishes each payload as one message keyed by its object key.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewSaramaConfig returns the producer configuration used by NewKafkaSink.
func NewSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	// payloads are already compressed
	sc.Producer.Compression = sarama.CompressionNone
	sc.Producer.MaxMessageBytes = 16 * 1024 * 1024
	return sc
}

// NewKafkaSink connects a synchronous producer to cfg.Brokers.
func NewKafkaSink(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, connectError(err, config.SinkKafka, "failed to create Kafka producer").
			WithDetail("brokers", cfg.Brokers)
	}
	logger.Info("kafka sink created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return NewKafkaSinkWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaSinkWithProducer creates a KafkaSink around an existing producer.
func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func (s *KafkaSink) Put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return putError(err, config.SinkKafka, key)
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(contentType)},
		},
	}
	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return putError(err, config.SinkKafka, key)
	}
	s.logger.Debug("payload produced",
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (s *KafkaSink) Name() string { return config.SinkKafka }

func (s *KafkaSink) Close() error { return s.producer.Close() }

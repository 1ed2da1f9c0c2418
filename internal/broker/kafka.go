package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/pkg/tracing"
)

// KafkaBroker consumes through a consumer group per worker instance, so
// every instance sees every event just like the Redis transport.
type KafkaBroker struct {
	cfg    config.KafkaConfig
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaBroker(cfg config.KafkaConfig, log logger.Logger) *KafkaBroker {
	return &KafkaBroker{
		cfg:    cfg,
		writer: NewKafkaWriter(cfg.Brokers),
		logger: log,
	}
}

// NewKafkaWriter builds a synchronous writer; the topic is chosen per
// message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

func (b *KafkaBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	groupID := b.cfg.EffectiveGroupID()

	readerCfg := kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    b.cfg.MinBytes,
		MaxBytes:    b.cfg.MaxBytes,
		StartOffset: kafka.LastOffset,
	}
	if err := readerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka reader config: %w", err)
	}

	b.logger.Infow("Creating Kafka reader",
		"broker", "kafka",
		"topic", topic,
		"brokers", b.cfg.Brokers,
		"group_id", groupID,
	)

	return &kafkaSubscription{reader: kafka.NewReader(readerCfg)}, nil
}

func (b *KafkaBroker) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	msg := kafka.Message{
		Topic:   topic,
		Value:   payload,
		Headers: tracing.KafkaHeaders(tracing.InjectHeaders(ctx)),
		Time:    time.Now(),
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}

type kafkaSubscription struct {
	reader *kafka.Reader
}

func (s *kafkaSubscription) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	m, err := s.reader.FetchMessage(fetchCtx)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrSubscriptionClosed
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, nil
		default:
			return nil, err
		}
	}

	reader := s.reader
	return &Message{
		Channel:    m.Topic,
		Payload:    m.Value,
		Headers:    tracing.HeadersFromKafka(m.Headers),
		ReceivedAt: time.Now(),
		ack: func(ctx context.Context) error {
			return reader.CommitMessages(ctx, m)
		},
	}, nil
}

func (s *kafkaSubscription) Depth() int64 {
	return s.reader.Stats().Lag
}

func (s *kafkaSubscription) Close() error {
	return s.reader.Close()
}

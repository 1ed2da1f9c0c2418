package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"beacon/internal/constants"
	"beacon/pkg/migrations"
)

// Sink durably stores dead-letter records.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// RedisSink pushes records onto a list, newest first. A positive maxLen
// trims the list after every push.
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	if key == "" {
		key = constants.DeadLetterQueue
	}
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

func (s *RedisSink) Name() string { return constants.DeadLetterSinkRedis }

func (s *RedisSink) Write(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, body)
	if s.maxLen > 0 {
		pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push dead letter to %s: %w", s.key, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *RedisSink) Recent(ctx context.Context, limit int64) ([]Record, error) {
	items, err := s.client.LRange(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters from %s: %w", s.key, err)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes records to a topic keyed by event id.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

func NewKafkaSink(writer *kafka.Writer, topic string) *KafkaSink {
	if topic == "" {
		topic = constants.DeadLetterQueue
	}
	return &KafkaSink{writer: writer, topic: topic}
}

func (s *KafkaSink) Name() string { return constants.DeadLetterSinkKafka }

func (s *KafkaSink) Write(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(rec.EventID),
		Value: body,
		Time:  rec.FailedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write dead letter to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// MongoSink stores one document per record.
type MongoSink struct {
	collection *mongo.Collection
}

// NewMongoSink ensures the collection indexes before returning the sink.
func NewMongoSink(ctx context.Context, db *mongo.Database, collection string) (*MongoSink, error) {
	if collection == "" {
		collection = constants.DefaultDeadLetterCollection
	}
	if err := migrations.EnsureDeadLetterIndexes(ctx, db, collection); err != nil {
		return nil, err
	}
	return &MongoSink{collection: db.Collection(collection)}, nil
}

func (s *MongoSink) Name() string { return constants.DeadLetterSinkMongoDB }

func (s *MongoSink) Write(ctx context.Context, rec Record) error {
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

// ByEventID returns every record stored for eventID, newest first.
func (s *MongoSink) ByEventID(ctx context.Context, eventID string) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "failed_at", Value: -1}})

	cursor, err := s.collection.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find dead letters: %w", err)
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode dead letters: %w", err)
	}
	return records, nil
}

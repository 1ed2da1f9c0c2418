package deadletter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"beacon/internal/broker"
	"beacon/internal/config"
	"beacon/internal/constants"
)

// Connections are the already-open clients a sink may write through.
type Connections struct {
	Redis        *redis.Client
	Mongo        *mongo.Database
	KafkaBrokers []string
}

// NewSink builds the sink named by cfg.Type. The log type has no sink and
// yields nil.
func NewSink(ctx context.Context, cfg config.DeadLetterConfig, conns Connections) (Sink, error) {
	switch cfg.Type {
	case constants.DeadLetterSinkLog:
		return nil, nil
	case constants.DeadLetterSinkRedis, "":
		if conns.Redis == nil {
			return nil, fmt.Errorf("dead letter sink %q requires a redis connection", constants.DeadLetterSinkRedis)
		}
		return NewRedisSink(conns.Redis, cfg.RedisKey, cfg.MaxLength), nil
	case constants.DeadLetterSinkKafka:
		if len(conns.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("dead letter sink %q requires kafka brokers", constants.DeadLetterSinkKafka)
		}
		return NewKafkaSink(broker.NewKafkaWriter(conns.KafkaBrokers), cfg.KafkaTopic), nil
	case constants.DeadLetterSinkMongoDB:
		if conns.Mongo == nil {
			return nil, fmt.Errorf("dead letter sink %q requires a mongodb connection", constants.DeadLetterSinkMongoDB)
		}
		sink, err := NewMongoSink(ctx, conns.Mongo, cfg.MongoCollection)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown dead letter sink type: %s", cfg.Type)
	}
}

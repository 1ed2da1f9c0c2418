package broker

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
)

// Broker is a transport able to both subscribe and publish.
type Broker interface {
	Subscriber
	Publisher
}

// New picks the transport named by cfg.Type. The Redis client is only
// needed for the redis transport.
func New(cfg config.BrokerConfig, redisClient *redis.Client, log logger.Logger) (Broker, error) {
	switch cfg.Type {
	case constants.BrokerRedis, "":
		if redisClient == nil {
			return nil, fmt.Errorf("redis broker requires a redis connection")
		}
		return NewRedisBroker(redisClient, log), nil
	case constants.BrokerKafka:
		return NewKafkaBroker(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// Channel returns the inbound events channel (Redis) or topic (Kafka).
func Channel(cfg config.BrokerConfig) string {
	if cfg.Type == constants.BrokerKafka {
		if cfg.Kafka.Topic != "" {
			return cfg.Kafka.Topic
		}
		return constants.EventsChannel
	}
	if cfg.Redis.Channel != "" {
		return cfg.Redis.Channel
	}
	return constants.EventsChannel
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"beacon/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks the configuration without contacting any
// dependency. All problems are reported together.
func ValidateStatic(cfg *Config) error {
	var errs []error

	for _, check := range []func(*Config) error{
		validateServer,
		validateDatabase,
		validateBroker,
		validateConsumer,
		validateRetry,
		validateDeadLetter,
		validateIdempotency,
		validateCampaigns,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateServer(cfg *Config) error {
	if !cfg.Server.Enabled {
		return nil
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Server.Port),
		}
	}

	if cfg.Server.ReadTimeout <= 0 || cfg.Server.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read and write timeouts must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg *Config) error {
	if err := validatePostgres(cfg.Database.Postgres); err != nil {
		return err
	}

	if cfg.Database.Redis.Configured() && (cfg.Database.Redis.Port < 1 || cfg.Database.Redis.Port > 65535) {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Database.Redis.Port),
		}
	}

	if cfg.Database.MongoDB.Configured() {
		uri := cfg.Database.MongoDB.URI
		if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
			return &ValidationError{
				Field:   "database.mongodb.uri",
				Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
			}
		}
		if cfg.Database.MongoDB.Database == "" {
			return &ValidationError{
				Field:   "database.mongodb.database",
				Message: "MongoDB database name is required",
			}
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if !cfg.Configured() {
		return &ValidationError{
			Field:   "database.postgres",
			Message: "PostgreSQL is required: set url or host",
		}
	}

	if cfg.URL != "" {
		if !strings.HasPrefix(cfg.URL, "postgres://") && !strings.HasPrefix(cfg.URL, "postgresql://") {
			return &ValidationError{
				Field:   "database.postgres.url",
				Message: "URL must start with postgres:// or postgresql://",
			}
		}
		return nil
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s", cfg.SSLMode),
		}
	}

	return nil
}

func validateBroker(cfg *Config) error {
	switch cfg.Broker.Type {
	case constants.BrokerRedis:
		if !cfg.Database.Redis.Configured() {
			return &ValidationError{
				Field:   "database.redis.host",
				Message: "the redis broker requires database.redis to be configured",
			}
		}
		if cfg.Broker.Redis.Channel == "" {
			return &ValidationError{
				Field:   "broker.redis.channel",
				Message: "channel is required",
			}
		}
	case constants.BrokerKafka:
		return validateKafka(cfg.Broker.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %q (supported: redis, kafka)", cfg.Broker.Type),
		}
	}
	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "broker.kafka.topic",
			Message: "Kafka topic is required",
		}
	}

	return nil
}

func validateConsumer(cfg *Config) error {
	if cfg.Consumer.PollTimeout <= 0 {
		return &ValidationError{
			Field:   "consumer.poll_timeout",
			Message: "poll timeout must be positive",
		}
	}
	if cfg.Consumer.ErrorPause < 0 {
		return &ValidationError{
			Field:   "consumer.error_pause",
			Message: "error pause must be non-negative",
		}
	}
	if cfg.Consumer.MaxConsecutiveErrors < 0 {
		return &ValidationError{
			Field:   "consumer.max_consecutive_errors",
			Message: "must be non-negative",
		}
	}
	return nil
}

func validateRetry(cfg *Config) error {
	if cfg.Retry.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "retry.max_attempts",
			Message: fmt.Sprintf("max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts),
		}
	}
	if cfg.Retry.BaseDelay < 0 {
		return &ValidationError{
			Field:   "retry.base_delay",
			Message: "base_delay must be non-negative",
		}
	}
	return nil
}

func validateDeadLetter(cfg *Config) error {
	dl := cfg.DeadLetter

	switch dl.Type {
	case constants.DeadLetterSinkLog:
	case constants.DeadLetterSinkRedis:
		if !cfg.Database.Redis.Configured() {
			return &ValidationError{
				Field:   "dead_letter.type",
				Message: "the redis dead-letter sink requires database.redis to be configured",
			}
		}
		if dl.RedisKey == "" {
			return &ValidationError{Field: "dead_letter.redis_key", Message: "redis key is required"}
		}
		if dl.RedisKey == cfg.Broker.Redis.Channel {
			return &ValidationError{Field: "dead_letter.redis_key", Message: "must differ from the events channel"}
		}
	case constants.DeadLetterSinkKafka:
		if len(cfg.Broker.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "dead_letter.type",
				Message: "the kafka dead-letter sink requires broker.kafka.brokers",
			}
		}
		if dl.KafkaTopic == "" || dl.KafkaTopic == cfg.Broker.Kafka.Topic {
			return &ValidationError{Field: "dead_letter.kafka_topic", Message: "must be set and differ from the events topic"}
		}
	case constants.DeadLetterSinkMongoDB:
		if !cfg.Database.MongoDB.Configured() {
			return &ValidationError{
				Field:   "dead_letter.type",
				Message: "the mongodb dead-letter sink requires database.mongodb to be configured",
			}
		}
		if dl.MongoCollection == "" {
			return &ValidationError{Field: "dead_letter.mongo_collection", Message: "collection is required"}
		}
	default:
		return &ValidationError{
			Field:   "dead_letter.type",
			Message: fmt.Sprintf("unknown sink type: %q (supported: log, redis, kafka, mongodb)", dl.Type),
		}
	}

	if dl.MaxLength < 0 {
		return &ValidationError{Field: "dead_letter.max_length", Message: "must be non-negative"}
	}
	if dl.WriteTimeout <= 0 {
		return &ValidationError{Field: "dead_letter.write_timeout", Message: "must be positive"}
	}
	return nil
}

func validateIdempotency(cfg *Config) error {
	if !cfg.Idempotency.MarkerEnabled {
		return nil
	}
	if !cfg.Database.Redis.Configured() {
		return &ValidationError{
			Field:   "idempotency.marker_enabled",
			Message: "the processed marker requires database.redis to be configured",
		}
	}
	if cfg.Idempotency.MarkerTTLSeconds <= 0 {
		return &ValidationError{
			Field:   "idempotency.marker_ttl_seconds",
			Message: "TTL must be positive",
		}
	}
	return nil
}

func validateCampaigns(cfg *Config) error {
	if cfg.Campaigns.ReloadIntervalSeconds < 0 {
		return &ValidationError{
			Field:   "campaigns.reload_interval_seconds",
			Message: "must be non-negative",
		}
	}
	return nil
}

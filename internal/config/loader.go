package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"beacon/internal/constants"
)

// LoadConfig reads an optional YAML file, applies environment overrides and
// defaults, and validates the result. With an empty configFile the
// configuration comes from the environment alone.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 10)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)

	v.SetDefault("broker.type", constants.BrokerRedis)
	v.SetDefault("broker.redis.channel", constants.EventsChannel)
	v.SetDefault("broker.kafka.group_id", constants.DefaultKafkaGroupID)
	v.SetDefault("broker.kafka.topic", constants.EventsChannel)
	v.SetDefault("broker.kafka.min_bytes", 1)
	v.SetDefault("broker.kafka.max_bytes", 10_000_000)

	v.SetDefault("consumer.poll_timeout", constants.DefaultPollTimeout.String())
	v.SetDefault("consumer.error_pause", constants.DefaultErrorPause.String())
	v.SetDefault("consumer.max_consecutive_errors", 0)

	v.SetDefault("retry.max_attempts", constants.DefaultRetryMaxAttempts)
	v.SetDefault("retry.base_delay", constants.DefaultRetryBaseDelay.String())

	v.SetDefault("dead_letter.type", constants.DeadLetterSinkRedis)
	v.SetDefault("dead_letter.redis_key", constants.DeadLetterQueue)
	v.SetDefault("dead_letter.kafka_topic", constants.DeadLetterQueue)
	v.SetDefault("dead_letter.mongo_collection", constants.DefaultDeadLetterCollection)
	v.SetDefault("dead_letter.write_timeout", constants.DefaultDeadLetterWriteTimeout.String())

	v.SetDefault("idempotency.marker_enabled", false)
	v.SetDefault("idempotency.marker_ttl_seconds", constants.DefaultMarkerTTLSeconds)

	v.SetDefault("campaigns.reload_interval_seconds", constants.DefaultCampaignReloadSecs)
	v.SetDefault("campaigns.updates_channel", constants.CampaignUpdatesChannel)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 5)

	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sampler.type", "always")
	v.SetDefault("tracing.sampler.param", 1.0)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("database.postgres.url", "DATABASE_URL")
	v.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	v.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	v.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	v.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	v.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	v.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	v.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	v.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	v.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	v.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	v.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	v.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	v.BindEnv("broker.type", "BROKER_TYPE")
	v.BindEnv("broker.redis.channel", "BROKER_REDIS_CHANNEL")
	v.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	v.BindEnv("broker.kafka.topic", "BROKER_KAFKA_TOPIC")
	v.BindEnv("broker.kafka.instance_id", "BROKER_KAFKA_INSTANCE_ID", "HOSTNAME")

	v.BindEnv("retry.max_attempts", "RETRY_MAX_ATTEMPTS")
	v.BindEnv("retry.base_delay", "RETRY_BASE_DELAY")

	v.BindEnv("dead_letter.type", "DEAD_LETTER_TYPE")

	v.BindEnv("server.port", "SERVER_PORT")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

// applyEnvOverrides handles values viper cannot decode from a plain
// environment string, such as the comma-separated broker list.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := v.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}
}

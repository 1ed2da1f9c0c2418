package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"beacon/pkg/circuitbreaker"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Consumer       ConsumerConfig       `mapstructure:"consumer"`
	Retry          RetryConfig          `mapstructure:"retry"`
	DeadLetter     DeadLetterConfig     `mapstructure:"dead_letter"`
	Idempotency    IdempotencyConfig    `mapstructure:"idempotency"`
	Campaigns      CampaignsConfig      `mapstructure:"campaigns"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

// ServerConfig is the operational HTTP server (/health, /metrics).
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	// RunMigrations applies the embedded Postgres schema at startup.
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	// URL, when set, takes precedence over the individual fields.
	URL          string `mapstructure:"url"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func (c PostgresConfig) Configured() bool {
	return c.URL != "" || c.Host != ""
}

func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Configured() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

func (c MongoDBConfig) Configured() bool {
	return c.URI != ""
}

type BrokerConfig struct {
	Type  string            `mapstructure:"type"`
	Redis RedisBrokerConfig `mapstructure:"redis"`
	Kafka KafkaConfig       `mapstructure:"kafka"`
}

type RedisBrokerConfig struct {
	Channel string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topic   string   `mapstructure:"topic"`
	// InstanceID is appended to GroupID so that every worker instance gets
	// its own consumer group and therefore every event.
	InstanceID string `mapstructure:"instance_id"`
	MinBytes   int    `mapstructure:"min_bytes"`
	MaxBytes   int    `mapstructure:"max_bytes"`
}

func (c KafkaConfig) EffectiveGroupID() string {
	if c.InstanceID == "" {
		return c.GroupID
	}
	return c.GroupID + "-" + c.InstanceID
}

type ConsumerConfig struct {
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	ErrorPause  time.Duration `mapstructure:"error_pause"`
	// MaxConsecutiveErrors of 0 keeps retrying transport errors forever.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type DeadLetterConfig struct {
	Type            string        `mapstructure:"type"`
	RedisKey        string        `mapstructure:"redis_key"`
	MaxLength       int64         `mapstructure:"max_length"`
	KafkaTopic      string        `mapstructure:"kafka_topic"`
	MongoCollection string        `mapstructure:"mongo_collection"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

type IdempotencyConfig struct {
	MarkerEnabled    bool `mapstructure:"marker_enabled"`
	MarkerTTLSeconds int  `mapstructure:"marker_ttl_seconds"`
}

type CampaignsConfig struct {
	// ReloadIntervalSeconds of 0 reads campaigns from the store for every
	// event; a positive value serves a cached snapshot refreshed on that
	// interval and on update notifications.
	ReloadIntervalSeconds int    `mapstructure:"reload_interval_seconds"`
	UpdatesChannel        string `mapstructure:"updates_channel"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}

// Breaker maps the configured settings onto a named breaker config,
// keeping the package defaults for zero values.
func (c CircuitBreakerConfig) Breaker(name string) circuitbreaker.Config {
	cb := circuitbreaker.DefaultConfig(name)
	if c.MaxRequests > 0 {
		cb.MaxRequests = c.MaxRequests
	}
	if c.Interval > 0 {
		cb.Interval = c.Interval
	}
	if c.Timeout > 0 {
		cb.Timeout = c.Timeout
	}
	if c.FailureRatio > 0 {
		cb.FailureRatio = c.FailureRatio
	}
	if c.MinRequests > 0 {
		cb.MinRequests = c.MinRequests
	}
	return cb
}

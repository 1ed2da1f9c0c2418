package constants

import "time"

const (
	ServiceName = "trigger-worker"
)

const (
	EventsChannel          = "events"
	DeadLetterQueue        = "dead_letter_queue"
	CampaignUpdatesChannel = "campaign_updates"
)

const (
	BrokerRedis = "redis"
	BrokerKafka = "kafka"
)

const (
	DeadLetterSinkLog     = "log"
	DeadLetterSinkRedis   = "redis"
	DeadLetterSinkKafka   = "kafka"
	DeadLetterSinkMongoDB = "mongodb"
)

const (
	DefaultPollTimeout      = 1 * time.Second
	DefaultErrorPause       = 1 * time.Second
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = 1 * time.Second
)

const (
	DefaultDeadLetterCollection   = "dead_letters"
	DefaultDeadLetterWriteTimeout = 5 * time.Second
)

const (
	ProcessedMarkerPrefix     = "processed:"
	DefaultMarkerTTLSeconds   = 86400
	DefaultMongoDBName        = "beacon"
	DefaultKafkaGroupID       = "campaign-trigger-worker"
	KafkaBatchTimeout         = 10 * time.Millisecond
	KafkaWriteTimeout         = 10 * time.Second
	DefaultCampaignReloadSecs = 0
)

const (
	ShutdownTimeout = 5 * time.Second
)

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

var (
	EventsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_worker_events_received_total",
			Help: "Total number of messages received from the events channel (count)",
		},
	)

	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_worker_events_processed_total",
			Help: "Total number of events processed, by outcome (count)",
		},
		[]string{"status"},
	)

	EventProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_worker_events_processing_time_seconds",
			Help:    "Time spent processing one event, retries included, in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	IdempotentSkipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_worker_idempotent_event_skips_total",
			Help: "Total number of events skipped because they were already processed (count)",
		},
	)

	CampaignMatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_worker_campaign_matches_total",
			Help: "Total number of campaign triggers recorded (count)",
		},
	)

	RuleEvaluationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_worker_rule_evaluation_errors_total",
			Help: "Total number of campaign rule evaluations that failed (count)",
		},
		[]string{"campaign_id"},
	)

	ActiveCampaigns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_worker_active_campaigns",
			Help: "Number of campaigns loaded for matching (count)",
		},
	)

	EventsInQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_events_in_queue",
			Help: "Messages waiting on the events channel, as reported by the transport (count)",
		},
	)

	DeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dead_letters_total",
			Help: "Total number of events sent to the dead-letter sink (count)",
		},
		[]string{"sink"},
	)

	DeadLetterSinkFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dead_letter_sink_failures_total",
			Help: "Total number of dead-letter records the sink failed to store (count)",
		},
		[]string{"sink"},
	)

	RetryAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_worker_retry_attempts_total",
			Help: "Total number of processing retries (count)",
		},
	)

	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_worker_decode_errors_total",
			Help: "Total number of messages discarded because they could not be decoded (count)",
		},
	)

	TransportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_worker_transport_errors_total",
			Help: "Total number of errors receiving from the events channel (count)",
		},
		[]string{"broker"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_events_published_total",
			Help: "Total number of events published to the events channel (count)",
		},
		[]string{"status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_db_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"operation", "status"},
	)

	DatabaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_db_connections_active",
			Help: "PostgreSQL connections currently in use (count)",
		},
	)

	CampaignReloadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_worker_campaign_reload_failures_total",
			Help: "Total number of failed campaign snapshot reloads, by trigger (count)",
		},
		[]string{"trigger"},
	)

	ServiceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campaign_service_up",
			Help: "Whether the service is running (1) or stopped (0)",
		},
		[]string{"service"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

var (
	workerOnce         sync.Once
	publisherOnce      sync.Once
	circuitBreakerOnce sync.Once
)

func RegisterWorkerMetrics() {
	workerOnce.Do(func() {
		prometheus.MustRegister(
			EventsReceivedTotal,
			EventsProcessedTotal,
			EventProcessingDuration,
			IdempotentSkipsTotal,
			CampaignMatchesTotal,
			RuleEvaluationErrorsTotal,
			ActiveCampaigns,
			EventsInQueue,
			DeadLettersTotal,
			DeadLetterSinkFailuresTotal,
			RetryAttemptsTotal,
			DecodeErrorsTotal,
			TransportErrorsTotal,
			DatabaseQueryDuration,
			DatabaseQueriesTotal,
			DatabaseConnectionsActive,
			CampaignReloadFailuresTotal,
			ServiceUp,
		)
	})
}

func RegisterPublisherMetrics() {
	publisherOnce.Do(func() {
		prometheus.MustRegister(EventsPublishedTotal)
	})
}

func RegisterCircuitBreakerMetrics() {
	circuitBreakerOnce.Do(func() {
		prometheus.MustRegister(
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}

func ObserveProcessingDuration(duration time.Duration) {
	EventProcessingDuration.Observe(duration.Seconds())
}

func IncEventsProcessed(status string) {
	EventsProcessedTotal.WithLabelValues(status).Inc()
}

func AddCampaignMatches(n int) {
	if n > 0 {
		CampaignMatchesTotal.Add(float64(n))
	}
}

func IncRuleEvaluationError(campaignID string) {
	RuleEvaluationErrorsTotal.WithLabelValues(campaignID).Inc()
}

func SetActiveCampaigns(count int) {
	ActiveCampaigns.Set(float64(count))
}

func SetEventsInQueue(depth int64) {
	EventsInQueue.Set(float64(depth))
}

func IncDeadLetters(sink string) {
	DeadLettersTotal.WithLabelValues(sink).Inc()
}

func IncDeadLetterSinkFailure(sink string) {
	DeadLetterSinkFailuresTotal.WithLabelValues(sink).Inc()
}

func IncTransportError(broker string) {
	TransportErrorsTotal.WithLabelValues(broker).Inc()
}

func IncEventsPublished(status string) {
	EventsPublishedTotal.WithLabelValues(status).Inc()
}

func ObserveDatabaseQuery(operation, status string, duration time.Duration) {
	DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func SetDatabaseConnectionsActive(inUse int) {
	DatabaseConnectionsActive.Set(float64(inUse))
}

func IncCampaignReloadFailure(trigger string) {
	CampaignReloadFailuresTotal.WithLabelValues(trigger).Inc()
}

func SetServiceUp(service string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	ServiceUp.WithLabelValues(service).Set(v)
}

package processing

import (
	"context"
	"fmt"
	"time"

	"beacon/internal/campaign"
	"beacon/internal/events"
	"beacon/internal/idempotency"
	"beacon/internal/logger"
	"beacon/pkg/logging"
	"beacon/pkg/metrics"
	"beacon/pkg/models"
	"beacon/pkg/retry"
	"beacon/pkg/tracing"
)

type CampaignSource interface {
	Campaigns(ctx context.Context) ([]campaign.Campaign, error)
}

type DeadLetterer interface {
	DeadLetter(ctx context.Context, msg *models.EventMessage, cause error, attempts int)
}

// Outcome is how one event left the pipeline.
type Outcome string

const (
	OutcomeProcessed  Outcome = "processed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeDeadLetter Outcome = "dead_letter"
)

type Pipeline struct {
	gate      *idempotency.Gate
	campaigns CampaignSource
	matcher   *campaign.Matcher
	repo      events.Repository
	executor  *retry.Executor
	dlq       DeadLetterer
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*Pipeline)

// WithClock replaces time.Now for processed_at stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithRetryOptions passes options through to the retry executor.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(p *Pipeline) {
		p.executor = retry.NewExecutor(p.executor.Policy(), append(opts, p.retryHook())...)
	}
}

func New(
	gate *idempotency.Gate,
	campaigns CampaignSource,
	matcher *campaign.Matcher,
	repo events.Repository,
	policy retry.Policy,
	dlq DeadLetterer,
	log logger.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		gate:      gate,
		campaigns: campaigns,
		matcher:   matcher,
		repo:      repo,
		dlq:       dlq,
		logger:    log,
		now:       time.Now,
	}
	p.executor = retry.NewExecutor(policy, p.retryHook())

	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) retryHook() retry.Option {
	return retry.WithOnRetry(func(attempt int, err error, next time.Duration) {
		metrics.RetryAttemptsTotal.Inc()
		p.logger.Warnw("Retrying event processing",
			"attempt", attempt,
			"max_attempts", p.executor.Policy().MaxAttempts,
			"next_delay", next,
			"error", err,
		)
	})
}

// Handle runs one event through the pipeline with retries. It returns an
// error only when every attempt failed, after the event has been handed to
// the dead-letter handler.
func (p *Pipeline) Handle(ctx context.Context, msg *models.EventMessage) (Outcome, error) {
	ctx = logging.WithEventID(ctx, msg.EventID)
	ctx, span := tracing.GetTracer("processing").Start(ctx, "processing.handle")
	defer span.End()

	start := time.Now()
	attempts := 0
	var outcome Outcome

	err := p.executor.Run(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		outcome, err = p.processOnce(ctx, msg)
		return err
	})
	metrics.ObserveProcessingDuration(time.Since(start))

	if err != nil {
		metrics.IncEventsProcessed(metrics.StatusError)
		p.dlq.DeadLetter(ctx, msg, err, attempts)
		return OutcomeDeadLetter, fmt.Errorf("event %s failed after %d attempts: %w", msg.EventID, attempts, err)
	}

	return outcome, nil
}

func (p *Pipeline) processOnce(ctx context.Context, msg *models.EventMessage) (Outcome, error) {
	done, err := p.gate.AlreadyProcessed(ctx, msg.EventID)
	if err != nil {
		return "", err
	}
	if done {
		metrics.IdempotentSkipsTotal.Inc()
		p.logger.InfowCtx(ctx, "Event already processed, skipping")
		return OutcomeSkipped, nil
	}

	campaigns, err := p.campaigns.Campaigns(ctx)
	if err != nil {
		return "", err
	}

	triggers := p.matcher.Match(ctx, msg.Payload, campaigns)

	processedAt := p.now().UTC()
	event := &events.Event{
		EventID:          msg.EventID,
		Payload:          msg.Payload,
		CampaignTriggers: triggers,
		ProcessedAt:      &processedAt,
	}

	if err := p.repo.InsertEvent(ctx, event); err != nil {
		if events.IsDuplicate(err) {
			metrics.IncEventsProcessed(metrics.StatusDuplicate)
			p.logger.InfowCtx(ctx, "Event recorded concurrently by another worker")
			p.gate.MarkProcessed(ctx, msg.EventID)
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	p.gate.MarkProcessed(ctx, msg.EventID)
	metrics.IncEventsProcessed(metrics.StatusSuccess)
	metrics.AddCampaignMatches(len(triggers))

	p.logger.InfowCtx(ctx, "Event processed",
		"campaign_triggers", triggers,
		"campaigns_evaluated", len(campaigns),
	)
	return OutcomeProcessed, nil
}

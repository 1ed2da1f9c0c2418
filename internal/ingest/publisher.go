package ingest

import (
	"context"
	"fmt"

	"beacon/internal/broker"
	"beacon/internal/logger"
	"beacon/pkg/metrics"
	"beacon/pkg/models"
)

// Publisher is the producer side of the events channel: it only lets
// well-formed events onto the wire.
type Publisher struct {
	pub     broker.Publisher
	channel string
	logger  logger.Logger
}

func NewPublisher(pub broker.Publisher, channel string, log logger.Logger) *Publisher {
	return &Publisher{pub: pub, channel: channel, logger: log}
}

func (p *Publisher) Publish(ctx context.Context, msg *models.EventMessage) error {
	if err := models.ValidateEventMessage(msg); err != nil {
		metrics.IncEventsPublished(metrics.StatusError)
		return fmt.Errorf("refusing to publish invalid event: %w", err)
	}

	body, err := msg.Encode()
	if err != nil {
		metrics.IncEventsPublished(metrics.StatusError)
		return fmt.Errorf("failed to encode event %s: %w", msg.EventID, err)
	}

	if err := p.pub.Publish(ctx, p.channel, msg.EventID, body); err != nil {
		metrics.IncEventsPublished(metrics.StatusError)
		return fmt.Errorf("failed to publish event %s: %w", msg.EventID, err)
	}

	metrics.IncEventsPublished(metrics.StatusSuccess)
	p.logger.InfowCtx(ctx, "Published event",
		"event_id", msg.EventID,
		"channel", p.channel,
	)
	return nil
}

// PublishRaw validates a JSON body against the wire contract before
// publishing it. With generateID set, a missing or empty event_id is
// replaced by a random one.
func (p *Publisher) PublishRaw(ctx context.Context, data []byte, generateID bool) (*models.EventMessage, error) {
	msg, err := models.DecodeEventMessage(data)
	if err != nil && generateID {
		msg, err = decodeWithGeneratedID(data)
	}
	if err != nil {
		metrics.IncEventsPublished(metrics.StatusError)
		return nil, err
	}

	if err := p.Publish(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

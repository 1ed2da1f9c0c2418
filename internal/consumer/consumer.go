package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"beacon/internal/broker"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/internal/processing"
	"beacon/pkg/logging"
	"beacon/pkg/metrics"
	"beacon/pkg/models"
	"beacon/pkg/tracing"
)

type Handler interface {
	Handle(ctx context.Context, msg *models.EventMessage) (processing.Outcome, error)
}

// Consumer owns one subscription to the events channel and hands each
// message to the handler, one at a time, to completion.
type Consumer struct {
	subscriber broker.Subscriber
	channel    string
	brokerName string
	handler    Handler
	cfg        config.ConsumerConfig
	logger     logger.Logger

	state   atomic.Int32
	limiter *rate.Limiter
}

func New(subscriber broker.Subscriber, channel, brokerName string, handler Handler, cfg config.ConsumerConfig, log logger.Logger) *Consumer {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = constants.DefaultPollTimeout
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = constants.DefaultErrorPause
	}

	c := &Consumer{
		subscriber: subscriber,
		channel:    channel,
		brokerName: brokerName,
		handler:    handler,
		cfg:        cfg,
		logger:     log,
		limiter:    rate.NewLimiter(rate.Every(cfg.ErrorPause), 1),
	}
	c.setState(StateStarting)
	return c
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// Run consumes until ctx is cancelled, which is a clean stop and returns
// nil. A failed subscribe, a subscription closed underneath the consumer,
// or too many consecutive transport errors are returned.
func (c *Consumer) Run(ctx context.Context) error {
	c.setState(StateStarting)
	ctx = logging.WithChannel(ctx, c.channel)

	sub, err := c.subscriber.Subscribe(ctx, c.channel)
	if err != nil {
		c.setState(StateStopped)
		metrics.SetServiceUp(constants.ServiceName, false)
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}
	c.setState(StateSubscribed)
	metrics.SetServiceUp(constants.ServiceName, true)

	c.logger.InfowCtx(ctx, "Started consuming",
		"broker", c.brokerName,
		"poll_timeout", c.cfg.PollTimeout,
	)

	defer func() {
		c.setState(StateDraining)
		if err := sub.Close(); err != nil {
			c.logger.WarnwCtx(ctx, "Failed to close subscription", "error", err)
		}
		c.setState(StateStopped)
		metrics.SetServiceUp(constants.ServiceName, false)
		c.logger.InfowCtx(ctx, "Stopped consuming")
	}()

	consecutiveErrors := 0
	c.setState(StateIdle)

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := sub.Receive(ctx, c.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, broker.ErrSubscriptionClosed) {
				return fmt.Errorf("consumer on %s: %w", c.channel, err)
			}

			consecutiveErrors++
			metrics.IncTransportError(c.brokerName)
			c.logger.ErrorwCtx(ctx, "Error receiving message",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)

			if c.cfg.MaxConsecutiveErrors > 0 && consecutiveErrors > c.cfg.MaxConsecutiveErrors {
				return fmt.Errorf("consumer on %s: %d consecutive transport errors: %w", c.channel, consecutiveErrors, err)
			}
			if err := c.pause(ctx); err != nil {
				return nil
			}
			continue
		}
		consecutiveErrors = 0

		if msg == nil {
			continue
		}

		metrics.EventsReceivedTotal.Inc()
		metrics.SetEventsInQueue(sub.Depth())

		c.setState(StateHandling)
		c.handle(ctx, msg)
		c.setState(StateIdle)
	}
}

// pause waits one full error interval before the next receive.
func (c *Consumer) pause(ctx context.Context) error {
	c.limiter.Allow()
	return c.limiter.Wait(ctx)
}

// handle processes msg to completion even if ctx is cancelled meanwhile.
func (c *Consumer) handle(ctx context.Context, msg *broker.Message) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.StartSpanFromHeaders(ctx, "consumer.handle", msg.Headers)
	defer span.End()
	if traceID := tracing.TraceID(ctx); traceID != "" {
		ctx = logging.WithTraceID(ctx, traceID)
	}

	defer func() {
		if err := msg.Ack(ctx); err != nil {
			c.logger.WarnwCtx(ctx, "Failed to acknowledge message", "error", err)
		}
	}()

	event, err := models.DecodeEventMessage(msg.Payload)
	if err != nil {
		metrics.DecodeErrorsTotal.Inc()
		c.logger.WarnwCtx(ctx, "Discarding undecodable message",
			"error", err,
			"bytes", len(msg.Payload),
		)
		return
	}

	start := time.Now()
	outcome, err := c.handler.Handle(ctx, event)
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Event processing failed",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	c.logger.DebugwCtx(ctx, "Event handled",
		"event_id", event.EventID,
		"outcome", outcome,
		"duration", time.Since(start),
	)
}

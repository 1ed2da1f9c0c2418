package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon/internal/logger"
)

// RedisBroker delivers over Redis pub/sub. Every subscriber receives every
// message, which gives one-delivery-per-instance fan-out for free.
type RedisBroker struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisBroker(client *redis.Client, log logger.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: log}
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// The first reply confirms the subscription; without it a bad
	// connection would only show up on the first Receive.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	b.logger.Infow("Subscribed to channel",
		"broker", "redis",
		"channel", channel,
	)

	return &redisSubscription{pubsub: pubsub, channel: channel}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, _ string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (b *RedisBroker) Close() error {
	return nil
}

type redisSubscription struct {
	pubsub  *redis.PubSub
	channel string
	closed  atomic.Bool
}

func (s *redisSubscription) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	if s.closed.Load() {
		return nil, ErrSubscriptionClosed
	}

	msg, err := s.pubsub.ReceiveTimeout(ctx, wait)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}
		if errors.Is(err, redis.ErrClosed) || s.closed.Load() {
			return nil, ErrSubscriptionClosed
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	switch m := msg.(type) {
	case *redis.Message:
		return &Message{
			Channel:    m.Channel,
			Payload:    []byte(m.Payload),
			ReceivedAt: time.Now(),
		}, nil
	default:
		// subscription confirmations and pongs
		return nil, nil
	}
}

// Depth is always 0: pub/sub has no server-side backlog to inspect.
func (s *redisSubscription) Depth() int64 {
	return 0
}

func (s *redisSubscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.pubsub.Unsubscribe(ctx, s.channel)
	return s.pubsub.Close()
}

package broker

import (
	"context"
	"errors"
	"time"
)

// ErrSubscriptionClosed is returned by Receive once the subscription has
// been closed or its connection torn down.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Message is one delivery from the transport. Payload is the raw body.
type Message struct {
	Channel    string
	Payload    []byte
	Headers    map[string]string
	ReceivedAt time.Time

	ack func(ctx context.Context) error
}

// Ack confirms the delivery to transports that track offsets. It is a
// no-op for fire-and-forget transports.
func (m *Message) Ack(ctx context.Context) error {
	if m == nil || m.ack == nil {
		return nil
	}
	return m.ack(ctx)
}

// Subscription is a live subscription to one channel.
type Subscription interface {
	// Receive waits up to wait for the next message. It returns (nil, nil)
	// when the wait elapses with nothing to deliver.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)
	// Depth reports messages waiting behind the current one, or 0 when
	// the transport cannot tell.
	Depth() int64
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, channel string, key string, payload []byte) error
	Close() error
}

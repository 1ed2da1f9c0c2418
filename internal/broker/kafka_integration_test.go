//go:build integration

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	"beacon/internal/logger"
	"beacon/internal/testinfra"
)

func TestKafkaBroker_PerInstanceGroupsFanOut(t *testing.T) {
	brokers := testinfra.Kafka(t)
	ctx := context.Background()

	newInstance := func(id string) *KafkaBroker {
		b := NewKafkaBroker(config.KafkaConfig{
			Brokers:    brokers,
			GroupID:    "campaign-trigger-worker",
			InstanceID: id,
			MinBytes:   1,
			MaxBytes:   10_000_000,
		}, logger.NopLogger())
		t.Cleanup(func() { b.Close() })
		return b
	}

	a := newInstance("a")
	b := newInstance("b")

	// create the topic before the readers join so they start at its end
	require.NoError(t, a.Publish(ctx, "events", "warmup", []byte("warmup")))

	subA, err := a.Subscribe(ctx, "events")
	require.NoError(t, err)
	defer subA.Close()
	subB, err := b.Subscribe(ctx, "events")
	require.NoError(t, err)
	defer subB.Close()

	received := func(sub Subscription) string {
		deadline := time.Now().Add(60 * time.Second)
		for time.Now().Before(deadline) {
			msg, err := sub.Receive(ctx, time.Second)
			require.NoError(t, err)
			if msg != nil && string(msg.Payload) != "warmup" {
				require.NoError(t, msg.Ack(ctx))
				return string(msg.Payload)
			}
		}
		return ""
	}

	// group joins take a few seconds; keep publishing until both have seen
	// a message
	pubCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-pubCtx.Done():
				return
			case <-ticker.C:
				_ = a.Publish(pubCtx, "events", "e1", []byte("hello"))
			}
		}
	}()

	assert.Equal(t, "hello", received(subA))
	assert.Equal(t, "hello", received(subB))
}

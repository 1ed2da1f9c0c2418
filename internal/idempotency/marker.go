package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon/internal/constants"
)

// Marker is a fast, lossy record of processed event ids. The event store
// stays the source of truth; a missing marker only costs a store lookup.
type Marker interface {
	IsMarked(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type RedisMarker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMarker(client *redis.Client, ttl time.Duration) *RedisMarker {
	if ttl <= 0 {
		ttl = constants.DefaultMarkerTTLSeconds * time.Second
	}
	return &RedisMarker{client: client, ttl: ttl}
}

func markerKey(eventID string) string {
	return constants.ProcessedMarkerPrefix + eventID
}

func (m *RedisMarker) IsMarked(ctx context.Context, eventID string) (bool, error) {
	n, err := m.client.Exists(ctx, markerKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis EXISTS failed: %w", err)
	}
	return n > 0, nil
}

func (m *RedisMarker) Mark(ctx context.Context, eventID string) error {
	if err := m.client.SetNX(ctx, markerKey(eventID), time.Now().Unix(), m.ttl).Err(); err != nil {
		return fmt.Errorf("redis SETNX failed: %w", err)
	}
	return nil
}

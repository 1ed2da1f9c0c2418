package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	pkgerrors "beacon/pkg/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("duplicate key")))
}

func TestIsDuplicate(t *testing.T) {
	err := ErrDuplicateEvent.WithCause(&pq.Error{Code: "23505"})
	assert.True(t, IsDuplicate(err))
	assert.True(t, errors.Is(err, ErrDuplicateEvent))
	assert.True(t, IsDuplicate(fmt.Errorf("insert: %w", err)))
	assert.False(t, IsDuplicate(pkgerrors.ErrConflict))
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	_, err := repo.FindEvent(ctx, "evt-1")
	assert.True(t, pkgerrors.IsNotFound(err))

	event := &Event{EventID: "evt-1", Payload: map[string]interface{}{"a": 1.0}, CampaignTriggers: []int64{1, 2}, ProcessedAt: &now}
	require.NoError(t, repo.InsertEvent(ctx, event))
	assert.Equal(t, int64(1), event.ID)

	err = repo.InsertEvent(ctx, &Event{EventID: "evt-1"})
	assert.True(t, IsDuplicate(err))
	assert.Equal(t, 1, repo.Len())

	found, err := repo.FindEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, found.Processed())
	assert.Equal(t, []int64{1, 2}, found.CampaignTriggers)

	found.CampaignTriggers[0] = 99
	again, err := repo.FindEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.CampaignTriggers[0])
}

func TestMemoryRepository_EmptyTriggersStayPresent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, repo.InsertEvent(ctx, &Event{EventID: "evt-none", CampaignTriggers: []int64{}, ProcessedAt: &now}))
	require.NoError(t, repo.InsertEvent(ctx, &Event{EventID: "evt-pending"}))

	processed, err := repo.FindEvent(ctx, "evt-none")
	require.NoError(t, err)
	assert.True(t, processed.Processed())
	assert.NotNil(t, processed.CampaignTriggers)
	assert.Empty(t, processed.CampaignTriggers)

	pending, err := repo.FindEvent(ctx, "evt-pending")
	require.NoError(t, err)
	assert.False(t, pending.Processed())
	assert.Nil(t, pending.CampaignTriggers)
}

type failingRepository struct {
	err   error
	calls int
}

func (r *failingRepository) InsertEvent(context.Context, *Event) error {
	r.calls++
	return r.err
}

func (r *failingRepository) FindEvent(context.Context, string) (*Event, error) {
	r.calls++
	return nil, r.err
}

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
}

func TestCircuitBreakerRepository_OpensOnFailures(t *testing.T) {
	inner := &failingRepository{err: errors.New("connection refused")}
	repo := NewCircuitBreakerRepository(inner, breakerConfig())

	for i := 0; i < 2; i++ {
		_, err := repo.FindEvent(context.Background(), "evt")
		require.Error(t, err)
	}

	_, err := repo.FindEvent(context.Background(), "evt")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerRepository_IgnoresExpectedOutcomes(t *testing.T) {
	inner := &failingRepository{err: ErrDuplicateEvent}
	repo := NewCircuitBreakerRepository(inner, breakerConfig())

	for i := 0; i < 5; i++ {
		err := repo.InsertEvent(context.Background(), &Event{EventID: "evt"})
		assert.True(t, IsDuplicate(err))
	}
	assert.Equal(t, 5, inner.calls)
}

func TestCircuitBreakerRepository_Disabled(t *testing.T) {
	inner := NewMemoryRepository()
	repo := NewCircuitBreakerRepository(inner, config.CircuitBreakerConfig{Enabled: false})
	assert.Same(t, inner, repo)
}

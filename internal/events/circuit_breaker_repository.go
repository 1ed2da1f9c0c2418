package events

import (
	"context"

	"beacon/internal/config"
	"beacon/pkg/circuitbreaker"
	pkgerrors "beacon/pkg/errors"
)

// CircuitBreakerRepository fails fast while Postgres is unhealthy, so the
// retry executor does not pile attempts onto a dead database. Duplicates and
// misses are normal outcomes and do not count as failures.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) Repository {
	if !cfg.Enabled {
		return repo
	}

	cbConfig := cfg.Breaker("postgres-events")
	cbConfig.IsSuccessful = func(err error) bool {
		return err == nil || IsDuplicate(err) || pkgerrors.IsNotFound(err)
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cbConfig),
	}
}

func (r *CircuitBreakerRepository) InsertEvent(ctx context.Context, event *Event) error {
	_, err := r.cb.Execute(ctx, func() (interface{}, error) {
		return nil, r.repo.InsertEvent(ctx, event)
	})
	return err
}

func (r *CircuitBreakerRepository) FindEvent(ctx context.Context, eventID string) (*Event, error) {
	return circuitbreaker.Do(ctx, r.cb, func() (*Event, error) {
		return r.repo.FindEvent(ctx, eventID)
	})
}

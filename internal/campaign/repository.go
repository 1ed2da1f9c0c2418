package campaign

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"beacon/internal/config"
	"beacon/pkg/circuitbreaker"
	"beacon/pkg/metrics"
)

type Repository interface {
	ListCampaigns(ctx context.Context) ([]Campaign, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	start := time.Now()

	query := `
		SELECT id, name, rules, created_at
		FROM campaigns
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		metrics.ObserveDatabaseQuery("list_campaigns", metrics.StatusError, time.Since(start))
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		var (
			c   Campaign
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &raw, &c.CreatedAt); err != nil {
			metrics.ObserveDatabaseQuery("list_campaigns", metrics.StatusError, time.Since(start))
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		c.Rules = raw
		campaigns = append(campaigns, c)
	}

	if err := rows.Err(); err != nil {
		metrics.ObserveDatabaseQuery("list_campaigns", metrics.StatusError, time.Since(start))
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	metrics.ObserveDatabaseQuery("list_campaigns", metrics.StatusSuccess, time.Since(start))
	return campaigns, nil
}

type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) Repository {
	if !cfg.Enabled {
		return repo
	}
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cfg.Breaker("postgres-campaigns")),
	}
}

func (r *CircuitBreakerRepository) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	return circuitbreaker.Do(ctx, r.cb, func() ([]Campaign, error) {
		return r.repo.ListCampaigns(ctx)
	})
}

// StaticRepository serves a fixed campaign list.
type StaticRepository []Campaign

func (r StaticRepository) ListCampaigns(context.Context) ([]Campaign, error) {
	out := make([]Campaign, len(r))
	copy(out, r)
	return out, nil
}

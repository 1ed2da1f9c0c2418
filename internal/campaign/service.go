package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"beacon/internal/config"
	"beacon/internal/logger"
	"beacon/pkg/metrics"
	"beacon/pkg/rules"
	"beacon/pkg/tracing"
)

// Service is the worker's view of the campaign set. With a zero reload
// interval every call reads the store; otherwise calls are served from a
// snapshot that is refreshed by StartReloader and by update notifications.
type Service struct {
	repo     Repository
	compiler *rules.Compiler
	cfg      config.CampaignsConfig
	logger   logger.Logger

	mu       sync.RWMutex
	snapshot []Campaign
	loaded   bool
	loadedAt time.Time
}

func NewService(repo Repository, cfg config.CampaignsConfig, log logger.Logger) (*Service, error) {
	compiler, err := rules.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule compiler: %w", err)
	}

	return &Service{
		repo:     repo,
		compiler: compiler,
		cfg:      cfg,
		logger:   log,
	}, nil
}

func (s *Service) cached() bool {
	return s.cfg.ReloadIntervalSeconds > 0
}

// Campaigns returns every campaign with its rule compiled.
func (s *Service) Campaigns(ctx context.Context) ([]Campaign, error) {
	if !s.cached() {
		return s.load(ctx)
	}

	s.mu.RLock()
	if s.loaded {
		out := make([]Campaign, len(s.snapshot))
		copy(out, s.snapshot)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	if err := s.ReloadCampaigns(ctx); err != nil {
		return nil, err
	}
	return s.Campaigns(ctx)
}

func (s *Service) ReloadCampaigns(ctx context.Context) error {
	campaigns, err := s.load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot = campaigns
	s.loaded = true
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.InfowCtx(ctx, "Successfully reloaded campaigns",
		"campaigns_count", len(campaigns),
	)
	return nil
}

func (s *Service) load(ctx context.Context) ([]Campaign, error) {
	ctx, span := tracing.GetTracer("campaign-service").Start(ctx, "campaign.load")
	defer span.End()

	campaigns, err := s.repo.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}

	for i := range campaigns {
		s.compile(ctx, &campaigns[i])
	}

	metrics.SetActiveCampaigns(len(campaigns))
	return campaigns, nil
}

func (s *Service) compile(ctx context.Context, c *Campaign) {
	if c.Rule != nil || c.RuleErr != nil {
		return
	}

	node, err := s.compiler.Compile(c.Rules)
	if err != nil {
		c.RuleErr = err
		s.logger.WarnwCtx(ctx, "Campaign rules do not compile",
			"campaign_id", c.ID,
			"campaign_name", c.Name,
			"error", err,
		)
		return
	}
	c.Rule = node

	for _, problem := range rules.Validate(node) {
		s.logger.WarnwCtx(ctx, "Campaign rules reference an unsupported operator",
			"campaign_id", c.ID,
			"campaign_name", c.Name,
			"error", problem,
		)
	}
}

// LoadedAt reports when the snapshot was last refreshed.
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// StartReloader refreshes the snapshot on the configured interval until
// ctx is done. It returns immediately when caching is off.
func (s *Service) StartReloader(ctx context.Context) error {
	if !s.cached() {
		return nil
	}

	ticker := time.NewTicker(time.Duration(s.cfg.ReloadIntervalSeconds) * time.Second)
	defer ticker.Stop()

	if err := s.ReloadCampaigns(ctx); err != nil {
		metrics.IncCampaignReloadFailure(reloadTriggerInterval)
		s.logger.ErrorwCtx(ctx, "Failed to reload campaigns", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadCampaigns(ctx); err != nil {
				metrics.IncCampaignReloadFailure(reloadTriggerInterval)
				s.logger.ErrorwCtx(ctx, "Failed to reload campaigns", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

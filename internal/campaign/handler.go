package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"beacon/internal/broker"
	"beacon/internal/logger"
	"beacon/pkg/metrics"
	"beacon/pkg/models"
)

const (
	reloadTriggerUpdate   = "update"
	reloadTriggerInterval = "interval"
)

type Reloader interface {
	ReloadCampaigns(ctx context.Context) error
}

// Handler refreshes the campaign snapshot when the admin side announces a
// change on the campaign updates channel.
type Handler struct {
	reloader Reloader
	logger   logger.Logger
}

func NewHandler(reloader Reloader, log logger.Logger) *Handler {
	return &Handler{reloader: reloader, logger: log}
}

func (h *Handler) HandleUpdate(ctx context.Context, data []byte) error {
	var event models.CampaignUpdateEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.logger.WarnwCtx(ctx, "Failed to decode campaign update event", "error", err)
		return nil
	}

	if !models.IsKnownCampaignAction(event.Action) {
		h.logger.WarnwCtx(ctx, "Ignoring campaign update with unknown action",
			"action", event.Action,
			"campaign_id", event.CampaignID,
		)
		return nil
	}

	h.logger.InfowCtx(ctx, "Received campaign update event",
		"action", event.Action,
		"campaign_id", event.CampaignID,
		"changed_by", event.ChangedBy,
	)

	if err := h.reloader.ReloadCampaigns(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to reload campaigns after update", "error", err)
		return err
	}
	return nil
}

// Listen feeds update notifications from sub into HandleUpdate until ctx is
// done or the subscription goes away. It owns sub and closes it.
func (h *Handler) Listen(ctx context.Context, sub broker.Subscription, wait time.Duration) error {
	defer sub.Close()

	for ctx.Err() == nil {
		msg, err := sub.Receive(ctx, wait)
		if err != nil {
			if errors.Is(err, broker.ErrSubscriptionClosed) || ctx.Err() != nil {
				break
			}
			h.logger.WarnwCtx(ctx, "Campaign updates receive failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		if msg == nil {
			continue
		}

		if err := h.HandleUpdate(ctx, msg.Payload); err != nil {
			metrics.IncCampaignReloadFailure(reloadTriggerUpdate)
		}
		if err := msg.Ack(ctx); err != nil {
			h.logger.WarnwCtx(ctx, "Failed to ack campaign update", "error", err)
		}
	}

	return ctx.Err()
}

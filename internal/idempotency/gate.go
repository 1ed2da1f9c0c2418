package idempotency

import (
	"context"
	"fmt"

	"beacon/internal/events"
	"beacon/internal/logger"
	pkgerrors "beacon/pkg/errors"
)

// Gate answers whether an event id has already been processed. It is a
// pre-check only: two workers may both pass it for the same id, and the
// unique event_id constraint then rejects the second insert.
type Gate struct {
	repo   events.Repository
	marker Marker
	logger logger.Logger
}

// NewGate builds a gate over the event store. marker may be nil.
func NewGate(repo events.Repository, marker Marker, log logger.Logger) *Gate {
	return &Gate{repo: repo, marker: marker, logger: log}
}

// AlreadyProcessed is true iff an events row for eventID has processed_at
// set. Marker failures are logged and fall through to the store.
func (g *Gate) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	if g.marker != nil {
		marked, err := g.marker.IsMarked(ctx, eventID)
		if err != nil {
			g.logger.WarnwCtx(ctx, "Processed marker lookup failed, using event store",
				"event_id", eventID,
				"error", err,
			)
		} else if marked {
			return true, nil
		}
	}

	event, err := g.repo.FindEvent(ctx, eventID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("idempotency check for %s: %w", eventID, err)
	}

	if !event.Processed() {
		return false, nil
	}

	g.MarkProcessed(ctx, eventID)
	return true, nil
}

// MarkProcessed records eventID in the marker, if one is configured.
// Failures are logged only.
func (g *Gate) MarkProcessed(ctx context.Context, eventID string) {
	if g.marker == nil {
		return
	}
	if err := g.marker.Mark(ctx, eventID); err != nil {
		g.logger.WarnwCtx(ctx, "Failed to set processed marker",
			"event_id", eventID,
			"error", err,
		)
	}
}

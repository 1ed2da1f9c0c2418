package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/metrics"
)

const uniqueViolation = "23505"

// ErrDuplicateEvent is returned by InsertEvent when a row with the same
// event_id already exists.
var ErrDuplicateEvent = pkgerrors.NewError("DUPLICATE_EVENT", "event already recorded")

type Repository interface {
	InsertEvent(ctx context.Context, event *Event) error
	FindEvent(ctx context.Context, eventID string) (*Event, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertEvent stores the event and fills in its row ID. The unique
// constraint on event_id surfaces as ErrDuplicateEvent.
func (r *PostgresRepository) InsertEvent(ctx context.Context, event *Event) error {
	start := time.Now()

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	var triggers sql.NullString
	if event.CampaignTriggers != nil {
		encoded, err := json.Marshal(event.CampaignTriggers)
		if err != nil {
			return fmt.Errorf("failed to encode campaign triggers: %w", err)
		}
		triggers = sql.NullString{String: string(encoded), Valid: true}
	}

	query := `
		INSERT INTO events (event_id, payload, campaign_triggers, processed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err = r.db.QueryRowContext(ctx, query,
		event.EventID, string(payload), triggers, event.ProcessedAt,
	).Scan(&event.ID)
	if err != nil {
		if isUniqueViolation(err) {
			metrics.ObserveDatabaseQuery("insert_event", metrics.StatusDuplicate, time.Since(start))
			return ErrDuplicateEvent.WithCause(err).WithDetail("event_id", event.EventID)
		}
		metrics.ObserveDatabaseQuery("insert_event", metrics.StatusError, time.Since(start))
		return fmt.Errorf("failed to insert event %s: %w", event.EventID, err)
	}

	metrics.ObserveDatabaseQuery("insert_event", metrics.StatusSuccess, time.Since(start))
	return nil
}

func (r *PostgresRepository) FindEvent(ctx context.Context, eventID string) (*Event, error) {
	start := time.Now()

	query := `
		SELECT id, event_id, payload, campaign_triggers, processed_at
		FROM events
		WHERE event_id = $1
	`

	var (
		event       Event
		payload     []byte
		triggers    []byte
		processedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.ID, &event.EventID, &payload, &triggers, &processedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveDatabaseQuery("find_event", metrics.StatusSuccess, time.Since(start))
		return nil, pkgerrors.ErrNotFound.WithCause(err).WithDetail("event_id", eventID)
	}
	if err != nil {
		metrics.ObserveDatabaseQuery("find_event", metrics.StatusError, time.Since(start))
		return nil, fmt.Errorf("failed to find event %s: %w", eventID, err)
	}
	metrics.ObserveDatabaseQuery("find_event", metrics.StatusSuccess, time.Since(start))

	if err := json.Unmarshal(payload, &event.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of event %s: %w", eventID, err)
	}
	if len(triggers) > 0 {
		if err := json.Unmarshal(triggers, &event.CampaignTriggers); err != nil {
			return nil, fmt.Errorf("failed to decode campaign triggers of event %s: %w", eventID, err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		event.ProcessedAt = &t
	}

	return &event, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func IsDuplicate(err error) bool {
	return pkgerrors.CodeOf(err) == ErrDuplicateEvent.Code
}

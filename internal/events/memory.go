package events

import (
	"context"
	"sync"

	pkgerrors "beacon/pkg/errors"
)

// MemoryRepository is an in-process Repository with the same uniqueness
// rule as the Postgres table. It backs tests and local dry runs.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]Event)}
}

func (r *MemoryRepository) InsertEvent(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[event.EventID]; exists {
		return ErrDuplicateEvent.WithDetail("event_id", event.EventID)
	}

	r.nextID++
	event.ID = r.nextID
	r.rows[event.EventID] = cloneEvent(*event)
	return nil
}

func (r *MemoryRepository) FindEvent(_ context.Context, eventID string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[eventID]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithDetail("event_id", eventID)
	}
	event := cloneEvent(row)
	return &event, nil
}

func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func cloneEvent(e Event) Event {
	out := e
	if e.CampaignTriggers != nil {
		out.CampaignTriggers = append(make([]int64, 0, len(e.CampaignTriggers)), e.CampaignTriggers...)
	}
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		out.ProcessedAt = &t
	}
	return out
}

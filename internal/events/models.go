package events

import "time"

// Event is the durable record of one processed event. ProcessedAt is set
// exactly when processing completed and is the only signal the idempotency
// gate trusts.
type Event struct {
	ID               int64
	EventID          string
	Payload          map[string]interface{}
	CampaignTriggers []int64
	ProcessedAt      *time.Time
}

func (e *Event) Processed() bool {
	return e != nil && e.ProcessedAt != nil
}

package deadletter

import (
	"time"

	"github.com/google/uuid"

	"beacon/pkg/models"
)

// Record is what lands in the dead-letter sink for an event that exhausted
// its retries.
type Record struct {
	ID       string               `json:"id" bson:"_id"`
	EventID  string               `json:"event_id" bson:"event_id"`
	Event    *models.EventMessage `json:"event" bson:"event"`
	Error    string               `json:"error" bson:"error"`
	Attempts int                  `json:"attempts" bson:"attempts"`
	Channel  string               `json:"channel" bson:"channel"`
	Service  string               `json:"service" bson:"service"`
	FailedAt time.Time            `json:"failed_at" bson:"failed_at"`
}

func NewRecord(msg *models.EventMessage, cause error, attempts int, channel, service string) Record {
	rec := Record{
		ID:       uuid.NewString(),
		Event:    msg,
		Attempts: attempts,
		Channel:  channel,
		Service:  service,
		FailedAt: time.Now().UTC(),
	}
	if msg != nil {
		rec.EventID = msg.EventID
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	return rec
}

package ingest

import (
	"encoding/json"

	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/models"
)

func decodeWithGeneratedID(data []byte) (*models.EventMessage, error) {
	var body struct {
		EventID string                 `json:"event_id"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, pkgerrors.ErrDecode.WithCause(err)
	}
	if body.Payload == nil {
		return nil, pkgerrors.ErrDecode.WithCause(&models.ValidationError{Field: "payload", Message: "must be a JSON object"})
	}

	return models.NewEventMessageBuilder().
		WithEventID(body.EventID).
		WithPayload(body.Payload).
		Build(), nil
}

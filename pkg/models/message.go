package models

import (
	"bytes"
	"encoding/json"

	pkgerrors "beacon/pkg/errors"
)

// EventMessage is the wire form of an event on the events channel.
type EventMessage struct {
	EventID string                 `json:"event_id" bson:"event_id"`
	Payload map[string]interface{} `json:"payload" bson:"payload"`
}

type rawEventMessage struct {
	EventID json.RawMessage `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEventMessage parses and structurally validates a message body. Any
// failure is a pkgerrors.ErrDecode.
func DecodeEventMessage(data []byte) (*EventMessage, error) {
	var raw rawEventMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, pkgerrors.ErrDecode.WithCause(err)
	}

	if len(raw.EventID) == 0 {
		return nil, decodeError("event_id", "field is required")
	}
	var eventID string
	if err := json.Unmarshal(raw.EventID, &eventID); err != nil {
		return nil, decodeError("event_id", "must be a string")
	}

	trimmed := bytes.TrimSpace(raw.Payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, decodeError("payload", "must be a JSON object")
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, pkgerrors.ErrDecode.WithCause(err).WithDetail("field", "payload")
	}

	msg := &EventMessage{EventID: eventID, Payload: payload}
	if err := ValidateEventMessage(msg); err != nil {
		return nil, pkgerrors.ErrDecode.WithCause(err)
	}
	return msg, nil
}

func decodeError(field, message string) error {
	return pkgerrors.ErrDecode.WithCause(&ValidationError{Field: field, Message: message})
}

func (m *EventMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

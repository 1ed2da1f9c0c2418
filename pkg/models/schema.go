package models

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateEventMessage(msg *EventMessage) error {
	if msg == nil {
		return &ValidationError{
			Field:   "event",
			Message: "event cannot be nil",
		}
	}

	if strings.TrimSpace(msg.EventID) == "" {
		return &ValidationError{
			Field:   "event_id",
			Message: "event_id must be a non-empty string",
		}
	}

	if msg.Payload == nil {
		return &ValidationError{
			Field:   "payload",
			Message: "payload must be a JSON object",
		}
	}

	return nil
}

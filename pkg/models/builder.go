package models

import "github.com/google/uuid"

type EventMessageBuilder struct {
	msg *EventMessage
}

func NewEventMessageBuilder() *EventMessageBuilder {
	return &EventMessageBuilder{
		msg: &EventMessage{Payload: make(map[string]interface{})},
	}
}

func (b *EventMessageBuilder) WithEventID(id string) *EventMessageBuilder {
	b.msg.EventID = id
	return b
}

func (b *EventMessageBuilder) WithPayload(payload map[string]interface{}) *EventMessageBuilder {
	b.msg.Payload = payload
	return b
}

func (b *EventMessageBuilder) WithField(name string, value interface{}) *EventMessageBuilder {
	if b.msg.Payload == nil {
		b.msg.Payload = make(map[string]interface{})
	}
	b.msg.Payload[name] = value
	return b
}

// Build fills in a random event_id when none was given.
func (b *EventMessageBuilder) Build() *EventMessage {
	if b.msg.EventID == "" {
		b.msg.EventID = uuid.NewString()
	}
	if b.msg.Payload == nil {
		b.msg.Payload = make(map[string]interface{})
	}
	return b.msg
}

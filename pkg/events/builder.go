package events

import "time"

type Builder struct {
	event *Event
}

func NewBuilder(eventType string) *Builder {
	return &Builder{
		event: &Event{
			Type:    eventType,
			Payload: make(map[string]interface{}),
		},
	}
}

func (b *Builder) WithID(id string) *Builder {
	b.event.ID = id
	return b
}

func (b *Builder) WithSource(source string) *Builder {
	b.event.Source = source
	return b
}

func (b *Builder) WithTimestamp(timestamp time.Time) *Builder {
	b.event.Timestamp = timestamp
	return b
}

func (b *Builder) WithPayload(payload map[string]interface{}) *Builder {
	b.event.Payload = payload
	return b
}

func (b *Builder) WithPayloadField(name string, value interface{}) *Builder {
	if b.event.Payload == nil {
		b.event.Payload = make(map[string]interface{})
	}
	b.event.Payload[name] = value
	return b
}

func (b *Builder) Build() *Event {
	if b.event.Timestamp.IsZero() {
		b.event.Timestamp = time.Now()
	}
	return b.event
}

package broker

import (
	"context"

	"pushbridge/pkg/events"
)

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc processes one inbound event. Returning an error keeps the
// event with the consumer: it is held and redelivered with backoff, which
// is how the readiness gate's "host holds events until configuration is
// set" behavior is realized.
type HandlerFunc func(ctx context.Context, e *events.Event) error

package messaging

import (
	"context"
)

// Broker is the pub/sub contract the broadcaster and the stream transport
// depend on. Delivery is best-effort: a message published while nobody is
// subscribed is simply lost.
type Broker interface {
	Publish(ctx context.Context, topic string, message interface{}) error
	Subscribe(ctx context.Context, topics ...string) (<-chan Message, error)
	Close() error
}

// Message is a single delivered payload, tagged with the topic it arrived on.
type Message struct {
	Topic   string
	Payload []byte
}

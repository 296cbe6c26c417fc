package messaging

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrTopicRequired is returned when the topic or subject is empty.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("messaging: client closed")
)

// Messaging is a broker-agnostic client that can publish and consume messages.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

// Publisher sends a message and waits for the broker to accept it.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg OutgoingMessage) error
}

// Consumer delivers messages from topic to handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message. With auto-ack enabled a nil return
// acks and an error nacks (requeues where the broker supports it).
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to publish.
type OutgoingMessage struct {
	Body []byte
	// Key is used for partitioning by Kafka and as the ordering key by Pub/Sub.
	Key        string
	Attributes map[string]string
}

// Message is a received message.
type Message interface {
	ID() string
	Body() []byte
	Attributes() map[string]string
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

package messaging

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// Memory is an in-process broker. Each topic fans out to every consumer; a
// nacked message is offered again to the same consumer.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string][]chan *memoryDelivery
	closed bool
	seq    atomic.Int64
}

type memoryDelivery struct {
	id    string
	body  []byte
	attrs map[string]string
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{subs: map[string][]chan *memoryDelivery{}}
}

// Close stops accepting publishes. Running consumers end with their contexts.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Publish hands msg to every consumer of topic, blocking while their buffers are full.
func (m *Memory) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	d := &memoryDelivery{
		id:    strconv.FormatInt(m.seq.Add(1), 10),
		body:  append([]byte(nil), msg.Body...),
		attrs: cloneAttrs(msg.Attributes),
	}
	for _, ch := range m.subs[topic] {
		select {
		case ch <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Consume registers a consumer of topic and blocks until ctx is done.
func (m *Memory) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	ch := make(chan *memoryDelivery, 64)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()

	defer m.unsubscribe(topic, ch)

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case d := <-ch:
					msg := &message{
						id:    d.id,
						body:  d.body,
						attrs: d.attrs,
						nack: func(context.Context) error {
							select {
							case ch <- d:
							default:
							}
							return nil
						},
					}
					_ = deliver(ctx, "memory", handler, msg, co.autoAck)
				}
			}
		})
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (m *Memory) unsubscribe(topic string, ch chan *memoryDelivery) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[topic]
	for i, c := range subs {
		if c == ch {
			m.subs[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_AutoAck(t *testing.T) {
	ctx := context.Background()

	newMsg := func(acks, nacks *int) *message {
		return &message{
			id:   "1",
			ack:  func(context.Context) error { *acks++; return nil },
			nack: func(context.Context) error { *nacks++; return nil },
		}
	}

	t.Run("ack on success", func(t *testing.T) {
		var acks, nacks int
		err := deliver(ctx, "test", func(context.Context, Message) error { return nil }, newMsg(&acks, &nacks), true)
		assert.NoError(t, err)
		assert.Equal(t, 1, acks)
		assert.Zero(t, nacks)
	})

	t.Run("nack on error", func(t *testing.T) {
		var acks, nacks int
		boom := errors.New("boom")
		err := deliver(ctx, "test", func(context.Context, Message) error { return boom }, newMsg(&acks, &nacks), true)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, acks)
		assert.Equal(t, 1, nacks)
	})

	t.Run("panic is recovered and nacked", func(t *testing.T) {
		var acks, nacks int
		err := deliver(ctx, "test", func(context.Context, Message) error { panic("bad") }, newMsg(&acks, &nacks), true)
		assert.ErrorContains(t, err, "panic in test handler")
		assert.Equal(t, 1, nacks)
	})

	t.Run("handler responded itself", func(t *testing.T) {
		var acks, nacks int
		err := deliver(ctx, "test", func(ctx context.Context, m Message) error {
			_ = m.Nack(ctx)
			return nil
		}, newMsg(&acks, &nacks), true)
		assert.NoError(t, err)
		assert.Zero(t, acks)
		assert.Equal(t, 1, nacks)
	})

	t.Run("manual ack mode", func(t *testing.T) {
		var acks, nacks int
		_ = deliver(ctx, "test", func(context.Context, Message) error { return nil }, newMsg(&acks, &nacks), false)
		assert.Zero(t, acks+nacks)
	})
}

func TestMemory_PublishConsume(t *testing.T) {
	broker, err := NewFromDriver(context.Background(), DriverMemory, FactoryOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- broker.Consume(ctx, "otp", func(_ context.Context, m Message) error {
			if calls.Add(1) == 1 {
				return errors.New("first attempt fails")
			}
			got <- m
			return nil
		}, WithAutoAck(true))
	}()

	require.Eventually(t, func() bool {
		mem := broker.(*Memory)
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return len(mem.subs["otp"]) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, broker.Publish(ctx, "otp", OutgoingMessage{
		Body:       []byte(`{"email":"a@b.co"}`),
		Attributes: map[string]string{"cID": "abc"},
	}))

	select {
	case m := <-got:
		assert.JSONEq(t, `{"email":"a@b.co"}`, string(m.Body()))
		assert.Equal(t, "abc", m.Attributes()["cID"])
		assert.Equal(t, int32(2), calls.Load(), "nacked message is redelivered")
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, broker.Close())
	assert.ErrorIs(t, broker.Publish(context.Background(), "otp", OutgoingMessage{}), ErrClosed)
}

func TestNewFromDriver_Errors(t *testing.T) {
	_, err := NewFromDriver(context.Background(), "rabbit", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewFromDriver(context.Background(), DriverKafka, FactoryOptions{})
	assert.ErrorIs(t, err, ErrKafkaBrokersRequired)

	_, err = NewFromDriver(context.Background(), DriverNATS, FactoryOptions{})
	assert.ErrorIs(t, err, ErrNATSURLRequired)

	_, err = NewFromDriver(context.Background(), DriverGooglePubSub, FactoryOptions{})
	assert.ErrorIs(t, err, ErrPubSubProjectIDRequired)
}

func TestNSQ_ConsumeValidation(t *testing.T) {
	n, err := NewNSQ(NSQConfig{})
	require.NoError(t, err)

	handler := func(context.Context, Message) error { return nil }
	assert.ErrorIs(t, n.Consume(context.Background(), "", handler), ErrTopicRequired)
	assert.ErrorIs(t, n.Consume(context.Background(), "t", nil), ErrHandlerRequired)
	assert.ErrorIs(t, n.Consume(context.Background(), "t", handler), ErrNSQConsumerAddrsRequired)
	assert.ErrorIs(t, n.Publish(context.Background(), "t", OutgoingMessage{}), ErrNSQProducerAddrRequired)
}

func TestNATSMessage_CoreDelivery(t *testing.T) {
	ctx := context.Background()

	h := nats.Header{}
	h.Set(nats.MsgIdHdr, "evt-1")
	h.Set("cID", "cid-1")

	m := natsMessage(&nats.Msg{Subject: "identity_otp_requested", Data: []byte(`{}`), Header: h})
	assert.Equal(t, "evt-1", m.ID())
	assert.Equal(t, []byte(`{}`), m.Body())
	assert.Equal(t, "cid-1", m.Attributes()["cID"])

	// Core NATS messages carry no ack subject; responding is a no-op.
	require.NoError(t, m.Ack(ctx))

	n := natsMessage(&nats.Msg{Subject: "identity_otp_requested", Header: h})
	require.NoError(t, n.Nack(ctx))
}

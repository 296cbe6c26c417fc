package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
	// ErrKafkaGroupRequired is returned when Consume has no WithGroup option.
	ErrKafkaGroupRequired = errors.New("messaging: kafka consumer group is required")
)

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	Brokers []string
}

// Kafka is a messaging implementation backed by kafka-go. Attributes travel as
// record headers. Ack commits the offset; Nack leaves it uncommitted so the
// record is read again after a rebalance or restart.
type Kafka struct {
	brokers []string
	writer  *kafka.Writer

	mu     sync.Mutex
	closed bool
}

// NewKafka constructs a Kafka client with one writer shared by all topics.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	return &Kafka{
		brokers: cfg.Brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.writer.Close()
}

func (k *Kafka) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

// Publish writes msg to topic, keyed by msg.Key.
func (k *Kafka) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if k.isClosed() {
		return ErrClosed
	}

	record := kafka.Message{Topic: topic, Value: msg.Body}
	if msg.Key != "" {
		record.Key = []byte(msg.Key)
	}
	for key, v := range msg.Attributes {
		record.Headers = append(record.Headers, kafka.Header{Key: key, Value: []byte(v)})
	}

	if err := k.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return nil
}

// Consume reads topic as the consumer group given by WithGroup.
func (k *Kafka) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	if k.isClosed() {
		return ErrClosed
	}

	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrKafkaGroupRequired
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  co.group,
		Topic:    topic,
		MaxBytes: 10e6,
	})

	records := make(chan kafka.Message)
	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for r := range records {
				_ = deliver(ctx, "kafka", handler, kafkaMessage(reader, r), co.autoAck)
			}
		})
	}

	var fetchErr error
	for {
		r, err := reader.FetchMessage(ctx)
		if err != nil {
			fetchErr = err
			break
		}
		select {
		case records <- r:
		case <-ctx.Done():
		}
	}

	close(records)
	wg.Wait()

	closeErr := reader.Close()
	if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) {
		return errors.Join(fetchErr, closeErr)
	}
	return errors.Join(fmt.Errorf("messaging: kafka fetch: %w", fetchErr), closeErr)
}

func kafkaMessage(reader *kafka.Reader, r kafka.Message) *message {
	attrs := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		if _, seen := attrs[h.Key]; !seen {
			attrs[h.Key] = string(h.Value)
		}
	}

	return &message{
		id:    r.Topic + "/" + strconv.Itoa(r.Partition) + "/" + strconv.FormatInt(r.Offset, 10),
		body:  r.Value,
		attrs: attrs,
		ack: func(ctx context.Context) error {
			return reader.CommitMessages(ctx, r)
		},
	}
}

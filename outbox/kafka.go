package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/warp/pos-engine/pos"
)

// Message headers set on every published event.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
)

// KafkaPublisher writes events to one topic, keyed by aggregate ID so all
// events of a transaction land on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		MaxAttempts:            3,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
		Compression:            kafka.Snappy,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error().Str("component", "kafka").Msgf(msg, args...)
		}),
	}
	return &KafkaPublisher{writer: w}, nil
}

// Message converts an outbox event into a Kafka message.
func Message(e pos.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(e.AggregateID),
		Value: e.Payload,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(e.ID)},
			{Key: HeaderEventType, Value: []byte(e.Type)},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []pos.OutboxEvent) error {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = Message(e)
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		return &BatchError{Errs: []error(writeErrs)}
	}
	if err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

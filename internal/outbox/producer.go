package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes outbox records through one writer shared by all
// topics. Records are hashed on their key, which the outbox sets to the user
// id, so each user's events land on one partition in outbox order.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer for brokers.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// WriteMessages publishes msgs to topic. A partial failure reports how many
// records the broker rejected.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	batch, err := addressed(topic, msgs)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, batch...)
	var rejected kafka.WriteErrors
	if errors.As(err, &rejected) {
		return fmt.Errorf("%d of %d records rejected: %w", rejected.Count(), len(batch), err)
	}
	return err
}

// Close flushes pending records and releases connections.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// addressed copies msgs with Topic set, since the shared writer has none.
func addressed(topic string, msgs []kafka.Message) ([]kafka.Message, error) {
	if topic == "" {
		return nil, errors.New("outbox: record without topic")
	}
	batch := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		if len(msg.Key) == 0 {
			return nil, fmt.Errorf("outbox: %s record without partition key", topic)
		}
		msg.Topic = topic
		batch[i] = msg
	}
	return batch, nil
}

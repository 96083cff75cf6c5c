package messaging

import (
	"context"

	"github.com/sapliy/reminder-engine/pkg/observability"
	"github.com/segmentio/kafka-go"
)

type KafkaConsumer struct {
	reader *kafka.Reader
	logger *observability.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, logger *observability.Logger) *KafkaConsumer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		}),
		logger: logger,
	}
}

// Consume hands each message to handler and commits it afterwards. A handler
// error is logged and the message is still committed; preference documents
// are full snapshots, so a later one supersedes a lost one.
func (c *KafkaConsumer) Consume(ctx context.Context, handler func(key string, value []byte) error) {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Error reading message from kafka", "error", err)
			continue
		}

		if err := handler(string(m.Key), m.Value); err != nil {
			c.logger.Warn("Error handling kafka message", "topic", m.Topic, "offset", m.Offset, "error", err)
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to commit kafka offset", "offset", m.Offset, "error", err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

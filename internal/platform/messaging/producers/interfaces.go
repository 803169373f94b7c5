package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher writes encoded settlement events keyed by transaction id, so
// every event of one transaction lands on the same partition
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
	Close() error
}

// DeadLetterPublisher parks settlement events the journal consumer cannot decode or validate
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the part of *kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ MessagePublisher    = (*SettlementEventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
	_ KafkaWriter         = (*kafka.Writer)(nil)
)

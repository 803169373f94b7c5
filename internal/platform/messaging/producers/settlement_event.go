package producers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/academy-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// SettlementEventProducer writes settlement events to the settlement topic.
// Writes are synchronous: the outbox poller only marks a row processed once
// the broker has acknowledged it.
type SettlementEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewSettlementEventProducer creates the producer and ensures the topic exists
func NewSettlementEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*SettlementEventProducer, error) {
	if cfg.SettlementTopic == "" {
		return nil, fmt.Errorf("kafka settlement topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for settlement producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, settlementTopicSpec(cfg.SettlementTopic, cfg.NumPartitions, cfg.ReplicationFactor), topicReadDelay, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure settlement topic %s exists: %w", cfg.SettlementTopic, err)
	}

	writer := &kafka.Writer{
		Addr: kafka.TCP(cfg.Brokers),
		// All events of one transaction land on one partition, in order
		Topic:        cfg.SettlementTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &SettlementEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.SettlementTopic,
	}, nil
}

// Publish writes one encoded event keyed by key
func (p *SettlementEventProducer) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: toKafkaHeaders(headers),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish settlement event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published settlement event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *SettlementEventProducer) Close() error {
	p.logger.Info("Closing settlement event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(headers[k])})
	}
	return out
}

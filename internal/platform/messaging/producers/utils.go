package producers

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicReadAttempts = 5
	topicReadDelay    = 2 * time.Second

	// settlement events are replayable from the outbox, a week covers any consumer outage
	settlementRetention = 7 * 24 * time.Hour
)

// topicAdmin is the part of *kafka.Conn used to bootstrap topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

var _ topicAdmin = (*kafka.Conn)(nil)

// topicSpec describes a topic the producers write to
type topicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	// Retention <= 0 keeps messages until deleted by an operator
	Retention time.Duration
}

func settlementTopicSpec(name string, numPartitions, replicationFactor int) topicSpec {
	return topicSpec{Name: name, NumPartitions: numPartitions, ReplicationFactor: replicationFactor, Retention: settlementRetention}
}

// dead letters stay until someone replays or discards them
func dlqTopicSpec(name string, numPartitions, replicationFactor int) topicSpec {
	return topicSpec{Name: name, NumPartitions: numPartitions, ReplicationFactor: replicationFactor}
}

func (s topicSpec) config() kafka.TopicConfig {
	cfg := kafka.TopicConfig{
		Topic:             s.Name,
		NumPartitions:     max(s.NumPartitions, 1),
		ReplicationFactor: max(s.ReplicationFactor, 1),
	}
	retention := "-1"
	if s.Retention > 0 {
		retention = strconv.FormatInt(s.Retention.Milliseconds(), 10)
	}
	cfg.ConfigEntries = []kafka.ConfigEntry{
		{ConfigName: "cleanup.policy", ConfigValue: "delete"},
		{ConfigName: "retention.ms", ConfigValue: retention},
	}
	return cfg
}

// ensureTopic creates the topic when no partitions can be read for it. Partition reads
// are retried since a freshly started broker may not have loaded its metadata yet.
func ensureTopic(admin topicAdmin, spec topicSpec, retryDelay time.Duration, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(spec.Name)
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions", "topic", spec.Name, "attempt", attempt, "error", err)
		if attempt < topicReadAttempts {
			time.Sleep(retryDelay)
		}
	}

	if len(partitions) > 0 {
		if len(partitions) < spec.NumPartitions {
			log.Warn("Topic has fewer partitions than configured, keeping existing layout",
				"topic", spec.Name, "partitions", len(partitions), "configured", spec.NumPartitions)
		}
		log.Info("Kafka topic ready", "topic", spec.Name, "partitions", len(partitions))
		return nil
	}

	cfg := spec.config()
	log.Info("Creating Kafka topic", "topic", spec.Name, "partitions", cfg.NumPartitions,
		"replication_factor", cfg.ReplicationFactor, "retention", spec.Retention, "last_read_error", err)
	if err := admin.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", spec.Name, err)
	}
	return nil
}

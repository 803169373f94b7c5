package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/academy-ledger/internal/domain/outbox"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/platform/messaging/producers"
)

// ErrPoisonMessage marks an outbox row whose payload can never be published.
// The relay has already parked it as FAILED_TO_PUBLISH.
var ErrPoisonMessage = errors.New("outbox payload is not a settlement event")

// Kafka header names carried with every settlement event
const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderCorrelationID = "correlation-id"
)

// EventRelay moves one outbox message onto the event stream
type EventRelay interface {
	Relay(ctx context.Context, message *outbox.Message) error
}

// KafkaEventRelay implements EventRelay
type KafkaEventRelay struct {
	outboxRepo outbox.Repository
	publisher  producers.MessagePublisher
	logger     *slog.Logger
}

func NewKafkaEventRelay(
	outboxRepo outbox.Repository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) EventRelay {
	return &KafkaEventRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// Relay publishes the stored payload keyed by transaction id, then marks the row
// PROCESSED. If the status update fails the row is published again on the next
// tick; the journal collapses the duplicate on event id.
func (r *KafkaEventRelay) Relay(ctx context.Context, message *outbox.Message) error {
	event, err := message.GetEvent()
	if err != nil {
		r.logger.Error("Failed to decode settlement event from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			r.logger.Error("Also failed to park undecodable outbox message", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("outbox %d: %w: %v", message.ID, ErrPoisonMessage, err)
	}

	logger := r.logger
	if event.CorrelationID != "" {
		logger = r.logger.With("correlation_id", event.CorrelationID)
	}

	headers := map[string]string{
		HeaderEventID:   message.EventID.String(),
		HeaderEventType: string(message.EventType),
	}
	if event.CorrelationID != "" {
		headers[HeaderCorrelationID] = event.CorrelationID
	}

	key := strconv.FormatInt(message.TransactionID, 10)
	if err := r.publisher.Publish(ctx, key, message.Payload, headers); err != nil {
		return fmt.Errorf("publish outbox %d: %w", message.ID, err)
	}

	if err := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to mark outbox message as PROCESSED",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		return fmt.Errorf("event for transaction %d published, but failed to mark outbox %d as PROCESSED: %w", message.TransactionID, message.ID, err)
	}

	logger.Info("Relayed settlement event",
		"outbox_id", message.ID,
		"transaction_id", message.TransactionID,
		"event_type", message.EventType,
	)
	return nil
}

package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/platform/messaging/producers"
	"github.com/academy-ledger/internal/settlement_processor/service"
)

// SettlementEventHandler projects settlement events from Kafka into the journal
type SettlementEventHandler struct {
	validator  service.EventValidator
	projection service.ProjectionService
	producer   producers.DeadLetterPublisher
	logger     *slog.Logger
}

func NewSettlementEventHandler(
	logger *slog.Logger,
	validator service.EventValidator,
	projection service.ProjectionService,
	producer producers.DeadLetterPublisher,
) *SettlementEventHandler {
	return &SettlementEventHandler{
		validator:  validator,
		projection: projection,
		producer:   producer,
		logger:     logger,
	}
}

// HandleMessage returns nil once the message is journaled or parked on the DLQ;
// any other outcome is returned so the consumer retries it.
func (h *SettlementEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.SettlementEvent
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("Failed to unmarshal settlement event", "error", err, "message_key", string(key))
		return h.deadLetter(ctx, key, value, fmt.Sprintf("undecodable settlement event: %s", err), err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	if err := h.validator.Validate(&event); err != nil {
		logger.Error("Settlement event failed validation",
			"event_id", event.EventID.String(),
			"transaction_id", event.TransactionID,
			"error", err,
		)
		return h.deadLetter(ctx, key, value, fmt.Sprintf("invalid settlement event: %s", err), err)
	}

	if err := h.projection.Project(ctx, &event); err != nil {
		return fmt.Errorf("projecting event %s failed: %w", event.EventID, err)
	}
	return nil
}

// deadLetter parks a poison message. Without a DLQ the cause is returned and
// the consumer keeps retrying.
func (h *SettlementEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string, cause error) error {
	if h.producer == nil {
		return cause
	}
	if err := h.producer.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("dead-lettering message %q: %w", key, err)
	}
	return nil
}

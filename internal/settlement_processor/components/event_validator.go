package components

import (
	"fmt"
	"log/slog"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/settlement_processor/service"
	"github.com/google/uuid"
)

type EventValidatorImpl struct {
	logger *slog.Logger
}

func NewEventValidator(logger *slog.Logger) service.EventValidator {
	return &EventValidatorImpl{logger: logger}
}

// Validate checks that the event identifies a transaction and that its status
// is the one its transition produces.
func (v *EventValidatorImpl) Validate(event *shared.SettlementEvent) error {
	if event.EventID == uuid.Nil {
		return invalid("event_id", "missing")
	}
	if event.TransactionID <= 0 {
		return invalid("transaction_id", fmt.Sprintf("must be positive, got %d", event.TransactionID))
	}

	expected, ok := event.Type.ResultingStatus()
	if !ok {
		return invalid("type", fmt.Sprintf("unknown event type %q", event.Type))
	}
	if event.Status != expected {
		return invalid("status", fmt.Sprintf("%s event carries status %s, expected %s", event.Type, event.Status, expected))
	}
	if !event.Source.Valid() {
		return invalid("source", fmt.Sprintf("unknown payment source %q", event.Source))
	}
	if !event.Amount.IsPositive() {
		return invalid("amount", "must be positive")
	}
	if event.OccurredAt.IsZero() {
		return invalid("occurred_at", "missing")
	}

	// Everything except an unassigned receipt is tied to a contract and its months
	if event.Type != shared.EventTransactionUnassigned && event.Type != shared.EventTransactionFailed {
		if event.ContractID == nil {
			return invalid("contract_id", "missing")
		}
		if event.PaymentYear == nil {
			return invalid("payment_year", "missing")
		}
		if err := transaction.ValidateMonths(event.PaymentMonths); err != nil {
			return err
		}
	}

	v.logger.Debug("Settlement event is valid",
		"event_id", event.EventID.String(),
		"transaction_id", event.TransactionID,
		"type", event.Type,
	)
	return nil
}

func invalid(field, reason string) error {
	return shared.InvalidInputError{Field: field, Reason: reason}
}

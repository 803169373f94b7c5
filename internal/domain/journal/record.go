package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"go.jetify.com/typeid/v2"
)

const idPrefix = "sjr"

// Record is the MongoDB projection of a settlement event. EventID is unique, so
// replaying an event never produces a second record.
type Record struct {
	ID             string                     `json:"id" bson:"_id"`
	EventID        string                     `json:"event_id" bson:"event_id"`
	Type           shared.SettlementEventType `json:"type" bson:"type"`
	TransactionID  int64                      `json:"transaction_id" bson:"transaction_id"`
	ExternalID     string                     `json:"external_id,omitempty" bson:"external_id,omitempty"`
	Source         shared.PaymentSource       `json:"source" bson:"source"`
	Status         shared.TransactionStatus   `json:"status" bson:"status"`
	PreviousStatus shared.TransactionStatus   `json:"previous_status,omitempty" bson:"previous_status,omitempty"`
	Amount         string                     `json:"amount" bson:"amount"`
	ContractID     *int64                     `json:"contract_id,omitempty" bson:"contract_id,omitempty"`
	StudentID      *int64                     `json:"student_id,omitempty" bson:"student_id,omitempty"`
	PaymentYear    *int                       `json:"payment_year,omitempty" bson:"payment_year,omitempty"`
	PaymentMonths  []int                      `json:"payment_months,omitempty" bson:"payment_months,omitempty"`
	CorrelationID  string                     `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt     time.Time                  `json:"occurred_at" bson:"occurred_at"`
	RecordedAt     time.Time                  `json:"recorded_at" bson:"recorded_at"`
}

// FromEvent projects a settlement event into a journal record.
func FromEvent(event *shared.SettlementEvent) (*Record, error) {
	id, err := typeid.Generate(idPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to generate journal id: %w", err)
	}
	return &Record{
		ID:             id.String(),
		EventID:        event.EventID.String(),
		Type:           event.Type,
		TransactionID:  event.TransactionID,
		ExternalID:     event.ExternalID,
		Source:         event.Source,
		Status:         event.Status,
		PreviousStatus: event.PreviousStatus,
		Amount:         event.Amount.StringFixed(2),
		ContractID:     event.ContractID,
		StudentID:      event.StudentID,
		PaymentYear:    event.PaymentYear,
		PaymentMonths:  event.PaymentMonths,
		CorrelationID:  event.CorrelationID,
		OccurredAt:     event.OccurredAt,
		RecordedAt:     time.Now(),
	}, nil
}

// Repository manages journal persistence
type Repository interface {
	// Append inserts the record unless its event was already journaled; inserted reports which.
	Append(ctx context.Context, record *Record) (inserted bool, err error)
	ListByTransaction(ctx context.Context, transactionID int64) ([]*Record, error)
}

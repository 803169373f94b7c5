package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementEvent is the outbox payload and Kafka message describing one
// transaction state transition.
type SettlementEvent struct {
	EventID        uuid.UUID           `json:"event_id"`
	Type           SettlementEventType `json:"type"`
	TransactionID  int64               `json:"transaction_id"`
	ExternalID     string              `json:"external_id,omitempty"`
	Source         PaymentSource       `json:"source"`
	Status         TransactionStatus   `json:"status"`
	PreviousStatus TransactionStatus   `json:"previous_status,omitempty"`
	Amount         decimal.Decimal     `json:"amount"`
	ContractID     *int64              `json:"contract_id,omitempty"`
	StudentID      *int64              `json:"student_id,omitempty"`
	PaymentYear    *int                `json:"payment_year,omitempty"`
	PaymentMonths  []int               `json:"payment_months,omitempty"`
	CorrelationID  string              `json:"correlation_id,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

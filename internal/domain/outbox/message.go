package outbox

import (
	"encoding/json"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/google/uuid"
)

// Message stores a settlement event for reliable publishing. It is written in the
// same database transaction as the state change it describes.
type Message struct {
	ID            int64                      `json:"id"`
	EventID       uuid.UUID                  `json:"event_id"`
	TransactionID int64                      `json:"transaction_id"`
	EventType     shared.SettlementEventType `json:"event_type"`
	Payload       json.RawMessage            `json:"payload"`
	Status        shared.OutboxStatus        `json:"status"`
	Attempts      int                        `json:"attempts"`
	CreatedAt     time.Time                  `json:"created_at"`
	LastAttemptAt *time.Time                 `json:"last_attempt_at,omitempty"`
}

// NewEvent snapshots txn into a settlement event of the given type.
func NewEvent(txn *transaction.Transaction, eventType shared.SettlementEventType, previous shared.TransactionStatus, correlationID string) *shared.SettlementEvent {
	return &shared.SettlementEvent{
		EventID:        uuid.New(),
		Type:           eventType,
		TransactionID:  txn.ID,
		ExternalID:     txn.ExternalKey(),
		Source:         txn.Source,
		Status:         txn.Status,
		PreviousStatus: previous,
		Amount:         txn.Amount,
		ContractID:     txn.ContractID,
		StudentID:      txn.StudentID,
		PaymentYear:    txn.PaymentYear,
		PaymentMonths:  txn.PaymentMonths,
		CorrelationID:  correlationID,
		OccurredAt:     txn.UpdatedAt,
	}
}

func NewMessage(event *shared.SettlementEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID,
		TransactionID: event.TransactionID,
		EventType:     event.Type,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetEvent extracts the settlement event from the payload
func (m *Message) GetEvent() (*shared.SettlementEvent, error) {
	var event shared.SettlementEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

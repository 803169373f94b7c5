package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settledTxn() *transaction.Transaction {
	contractID, studentID, year := int64(7), int64(3), 2025
	ext := "click-991"
	return &transaction.Transaction{
		ID:            42,
		ExternalID:    &ext,
		Amount:        decimal.NewFromInt(500000),
		Source:        shared.PaymentSourceClick,
		Status:        shared.TransactionStatusSuccess,
		ContractID:    &contractID,
		StudentID:     &studentID,
		PaymentYear:   &year,
		PaymentMonths: []int{12},
		UpdatedAt:     time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewMessage(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		event := NewEvent(settledTxn(), shared.EventTransactionSettled, shared.TransactionStatusPending, "corr-1")

		beforeCreation := time.Now()
		msg, err := NewMessage(event)
		afterCreation := time.Now()

		require.NoError(t, err)
		require.NotNil(t, msg)

		assert.Equal(t, event.EventID, msg.EventID)
		assert.Equal(t, int64(42), msg.TransactionID)
		assert.Equal(t, shared.EventTransactionSettled, msg.EventType)
		assert.Equal(t, shared.OutboxStatusPending, msg.Status)
		assert.Equal(t, 0, msg.Attempts)
		assert.Nil(t, msg.LastAttemptAt)
		assert.WithinDuration(t, beforeCreation, msg.CreatedAt, afterCreation.Sub(beforeCreation)+time.Millisecond)

		var decoded shared.SettlementEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, "click-991", decoded.ExternalID)
		assert.Equal(t, shared.TransactionStatusPending, decoded.PreviousStatus)
		assert.True(t, decoded.Amount.Equal(decimal.NewFromInt(500000)))
	})
}

func TestMessage_StatusChanges(t *testing.T) {
	tests := []struct {
		name     string
		apply    func(m *Message)
		expected shared.OutboxStatus
		attempts int
	}{
		{"IncrementAttempts", (*Message).IncrementAttempts, shared.OutboxStatusPending, 2},
		{"MarkAsProcessed", (*Message).MarkAsProcessed, shared.OutboxStatusProcessed, 1},
		{"MarkAsFailed", (*Message).MarkAsFailed, shared.OutboxStatusFailedToPublish, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initialTime := time.Now().Add(-time.Hour)
			msg := &Message{Status: shared.OutboxStatusPending, Attempts: 1, LastAttemptAt: &initialTime}

			tt.apply(msg)

			assert.Equal(t, tt.expected, msg.Status)
			assert.Equal(t, tt.attempts, msg.Attempts)
			require.NotNil(t, msg.LastAttemptAt)
			assert.True(t, msg.LastAttemptAt.After(initialTime))
		})
	}
}

func TestMessage_GetEvent(t *testing.T) {
	t.Run("SuccessfulGetEvent", func(t *testing.T) {
		original := NewEvent(settledTxn(), shared.EventTransactionSettled, shared.TransactionStatusPending, "corr-2")
		payload, err := json.Marshal(original)
		require.NoError(t, err)

		msg := &Message{Payload: payload}
		decoded, err := msg.GetEvent()

		require.NoError(t, err)
		assert.Equal(t, original.EventID, decoded.EventID)
		assert.Equal(t, original.TransactionID, decoded.TransactionID)
		assert.Equal(t, original.PaymentMonths, decoded.PaymentMonths)
		assert.True(t, original.OccurredAt.Equal(decoded.OccurredAt))
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		msg := &Message{Payload: json.RawMessage(`{"event_id":`)}
		_, err := msg.GetEvent()
		assert.Error(t, err)
	})
}

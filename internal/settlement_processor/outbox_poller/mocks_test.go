package outbox_poller

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/academy-ledger/internal/domain/outbox"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/platform/messaging/producers"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) PurgeProcessed(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(pgx.Tx) outbox.Repository {
	return m
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	args := m.Called(ctx, key, value, headers)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

type MockEventRelay struct {
	mock.Mock
}

func (m *MockEventRelay) Relay(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

var (
	_ outbox.Repository          = (*MockOutboxRepo)(nil)
	_ producers.MessagePublisher = (*MockPublisher)(nil)
	_ EventRelay                 = (*MockEventRelay)(nil)
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pendingMessage builds an outbox row the way the settlement service writes it
func pendingMessage(t *testing.T, id, transactionID int64, eventType shared.SettlementEventType, correlationID string) *outbox.Message {
	t.Helper()
	status, _ := eventType.ResultingStatus()
	contractID, year := int64(11), 2025
	event := &shared.SettlementEvent{
		EventID:       uuid.New(),
		Type:          eventType,
		TransactionID: transactionID,
		Source:        shared.PaymentSourceClick,
		Status:        status,
		Amount:        decimal.RequireFromString("1500000"),
		ContractID:    &contractID,
		PaymentYear:   &year,
		PaymentMonths: []int{12},
		CorrelationID: correlationID,
		OccurredAt:    time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC),
	}
	msg, err := outbox.NewMessage(event)
	require.NoError(t, err)
	msg.ID = id
	return msg
}

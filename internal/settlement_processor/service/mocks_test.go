package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockJournalRepo struct {
	mock.Mock
}

func (m *MockJournalRepo) Append(ctx context.Context, record *journal.Record) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockJournalRepo) ListByTransaction(ctx context.Context, transactionID int64) ([]*journal.Record, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*journal.Record), args.Error(1)
}

type MockProjectionService struct {
	mock.Mock
}

func (m *MockProjectionService) Project(ctx context.Context, event *shared.SettlementEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var (
	_ journal.Repository = (*MockJournalRepo)(nil)
	_ ProjectionService  = (*MockProjectionService)(nil)
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func settledEvent(transactionID int64) *shared.SettlementEvent {
	contractID, studentID, year := int64(11), int64(7), 2025
	return &shared.SettlementEvent{
		EventID:        uuid.New(),
		Type:           shared.EventTransactionSettled,
		TransactionID:  transactionID,
		ExternalID:     "pd-1",
		Source:         shared.PaymentSourceClick,
		Status:         shared.TransactionStatusSuccess,
		PreviousStatus: shared.TransactionStatusPending,
		Amount:         decimal.RequireFromString("1500000"),
		ContractID:     &contractID,
		StudentID:      &studentID,
		PaymentYear:    &year,
		PaymentMonths:  []int{12},
		CorrelationID:  "corr-1",
		OccurredAt:     time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC),
	}
}

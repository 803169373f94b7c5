package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/gatelog"
	"github.com/academy-ledger/internal/domain/group"
	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/outbox"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/domain/waitinglist"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByExternalID(ctx context.Context, source shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, source, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) LockByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) LockByExternalID(ctx context.Context, source shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, source, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByContract(ctx context.Context, contractID int64, statuses ...shared.TransactionStatus) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, contractID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) ListSettledBetween(ctx context.Context, source shared.PaymentSource, from, to time.Time) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, source, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

type MockContractRepository struct {
	mock.Mock
}

func (m *MockContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockContractRepository) GetByID(ctx context.Context, id int64) (*contract.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockContractRepository) GetByNumber(ctx context.Context, number string) (*contract.Contract, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockContractRepository) ListActiveByStudent(ctx context.Context, studentID int64) ([]*contract.Contract, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*contract.Contract), args.Error(1)
}

func (m *MockContractRepository) LockByNumber(ctx context.Context, number string) (*contract.Contract, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockContractRepository) LockByID(ctx context.Context, id int64) (*contract.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockContractRepository) UpdateStatus(ctx context.Context, id int64, status shared.ContractStatus, version int) error {
	args := m.Called(ctx, id, status, version)
	return args.Error(0)
}

func (m *MockContractRepository) UsedSequences(ctx context.Context, scope contract.Scope) ([]int, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockContractRepository) WithTx(tx pgx.Tx) contract.Repository {
	return m
}

type MockStudentRepository struct {
	mock.Mock
}

func (m *MockStudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*student.Student), args.Error(1)
}

func (m *MockStudentRepository) GetByFaceID(ctx context.Context, faceID string) (*student.Student, error) {
	args := m.Called(ctx, faceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*student.Student), args.Error(1)
}

func (m *MockStudentRepository) WithTx(tx pgx.Tx) student.Repository {
	return m
}

type MockGroupRepository struct {
	mock.Mock
}

func (m *MockGroupRepository) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group.Group), args.Error(1)
}

func (m *MockGroupRepository) WithTx(tx pgx.Tx) group.Repository {
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) PurgeProcessed(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type MockJournalRepository struct {
	mock.Mock
}

func (m *MockJournalRepository) Append(ctx context.Context, record *journal.Record) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockJournalRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]*journal.Record, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*journal.Record), args.Error(1)
}

type MockGateLogRepository struct {
	mock.Mock
}

func (m *MockGateLogRepository) Append(ctx context.Context, entry *gatelog.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockGateLogRepository) List(ctx context.Context, filter gatelog.Filter) ([]*gatelog.Entry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*gatelog.Entry), args.Error(1)
}

func (m *MockGateLogRepository) Count(ctx context.Context, filter gatelog.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockWaitingListRepository struct {
	mock.Mock
}

func (m *MockWaitingListRepository) Add(ctx context.Context, entry *waitinglist.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockWaitingListRepository) ListByGroup(ctx context.Context, groupID int64) ([]*waitinglist.Entry, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*waitinglist.Entry), args.Error(1)
}

func (m *MockWaitingListRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWaitingListRepository) DeleteByStudent(ctx context.Context, studentID int64) (int64, error) {
	args := m.Called(ctx, studentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWaitingListRepository) WithTx(tx pgx.Tx) waitinglist.Repository {
	return m
}

type MockScopeLocker struct {
	mock.Mock
}

func (m *MockScopeLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

package gateway

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/domain/waitinglist"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) txn(args mock.Arguments) (*transaction.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockSettlementService) CreateManual(ctx context.Context, req service.ManualPaymentRequest) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, req))
}

func (m *MockSettlementService) CheckPrepare(ctx context.Context, req service.PrepareRequest) (*contract.Contract, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockSettlementService) Prepare(ctx context.Context, req service.PrepareRequest) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, req))
}

func (m *MockSettlementService) Confirm(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, provider, externalID))
}

func (m *MockSettlementService) Check(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, provider, externalID))
}

func (m *MockSettlementService) Cancel(ctx context.Context, provider shared.PaymentSource, externalID string, reason int) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, provider, externalID, reason))
}

func (m *MockSettlementService) CancelByID(ctx context.Context, id int64, reason int) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, id, reason))
}

func (m *MockSettlementService) Fail(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, provider, externalID))
}

func (m *MockSettlementService) RecordUnassigned(ctx context.Context, req service.UnassignedPaymentRequest) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, req))
}

func (m *MockSettlementService) Assign(ctx context.Context, id int64, req service.AssignRequest) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, id, req))
}

func (m *MockSettlementService) Get(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return m.txn(m.Called(ctx, id))
}

func (m *MockSettlementService) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockSettlementService) ListUnassigned(ctx context.Context, limit, offset int) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockSettlementService) Reconcile(ctx context.Context, provider shared.PaymentSource, from, to time.Time) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, provider, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockSettlementService) Journal(ctx context.Context, id int64) ([]*journal.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*journal.Record), args.Error(1)
}

type MockContractService struct {
	mock.Mock
}

func (m *MockContractService) CreateContract(ctx context.Context, req service.CreateContractRequest) (*contract.Contract, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockContractService) Terminate(ctx context.Context, id int64, status shared.ContractStatus) (*contract.Contract, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockContractService) Describe(ctx context.Context, number string) (*service.ContractInfo, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ContractInfo), args.Error(1)
}

func (m *MockContractService) AvailableSequences(ctx context.Context, groupID int64, birthYear int) ([]int, error) {
	args := m.Called(ctx, groupID, birthYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockContractService) AddToWaitingList(ctx context.Context, entry *waitinglist.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockContractService) ListWaitingList(ctx context.Context, groupID int64) ([]*waitinglist.Entry, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*waitinglist.Entry), args.Error(1)
}

func (m *MockContractService) RemoveFromWaitingList(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockContractLookup struct {
	mock.Mock
}

func (m *MockContractLookup) GetByID(ctx context.Context, id int64) (*contract.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

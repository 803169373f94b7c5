package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/academy-ledger/internal/api_gateway/gateway"
	"github.com/academy-ledger/internal/api_gateway/middleware"
	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/debt"
	"github.com/academy-ledger/internal/domain/gatelog"
	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/domain/waitinglist"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// PaginatedResponse is a generic version of Response for testing paginated data
type PaginatedResponse[T any] struct {
	Data          []T        `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

// DataResponse decodes the envelope of a single resource
type DataResponse[T any] struct {
	Data          T          `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Actor())
	return router
}

func perform(router *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func decodeBytes[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

var testNow = time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC)

func successTxn(id int64) *transaction.Transaction {
	contractID, studentID, year := int64(11), int64(7), 2025
	external := "pd-1"
	paid := testNow
	return &transaction.Transaction{
		ID:            id,
		ExternalID:    &external,
		Amount:        mustAmount("1500000.00"),
		Source:        shared.PaymentSourceClick,
		Status:        shared.TransactionStatusSuccess,
		StudentID:     &studentID,
		ContractID:    &contractID,
		PaymentYear:   &year,
		PaymentMonths: []int{12},
		PaidAt:        &paid,
		Version:       1,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
}

type MockSettlementService struct {
	mock.Mock
}

func txnOrNil(args mock.Arguments) (*transaction.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockSettlementService) CreateManual(ctx context.Context, req service.ManualPaymentRequest) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, req))
}

func (m *MockSettlementService) CheckPrepare(ctx context.Context, req service.PrepareRequest) (*contract.Contract, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *MockSettlementService) Prepare(ctx context.Context, req service.PrepareRequest) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, req))
}

func (m *MockSettlementService) Confirm(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, provider, externalID))
}

func (m *MockSettlementService) Check(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, provider, externalID))
}

func (m *MockSettlementService) Cancel(ctx context.Context, provider shared.PaymentSource, externalID string, reason int) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, provider, externalID, reason))
}

func (m *MockSettlementService) CancelByID(ctx context.Context, id int64, reason int) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, id, reason))
}

func (m *MockSettlementService) Fail(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, provider, externalID))
}

func (m *MockSettlementService) RecordUnassigned(ctx context.Context, req service.UnassignedPaymentRequest) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, req))
}

func (m *MockSettlementService) Assign(ctx context.Context, id int64, req service.AssignRequest) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, id, req))
}

func (m *MockSettlementService) Get(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return txnOrNil(m.Called(ctx, id))
}

func (m *MockSettlementService) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockSettlementService) ListUnassigned(ctx context.Context, limit, offset int) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
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

type MockGateService struct {
	mock.Mock
}

func (m *MockGateService) Decide(ctx context.Context, req service.GateRequest) (*service.GateDecision, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.GateDecision), args.Error(1)
}

func (m *MockGateService) ListLogs(ctx context.Context, filter gatelog.Filter) ([]*gatelog.Entry, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*gatelog.Entry), args.Get(1).(int64), args.Error(2)
}

type MockDebtService struct {
	mock.Mock
}

func (m *MockDebtService) Outstanding(ctx context.Context, studentID int64, period shared.Period) (*debt.Summary, error) {
	args := m.Called(ctx, studentID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*debt.Summary), args.Error(1)
}

func (m *MockDebtService) CurrentPeriod() shared.Period {
	return m.Called().Get(0).(shared.Period)
}

type MockClickGateway struct {
	mock.Mock
}

func (m *MockClickGateway) Handle(ctx context.Context, req *gateway.ClickRequest) (*gateway.ClickResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ClickResponse), args.Error(1)
}

type MockPaymeGateway struct {
	mock.Mock
}

func (m *MockPaymeGateway) Authorize(authorization, xAuth string) error {
	return m.Called(authorization, xAuth).Error(0)
}

func (m *MockPaymeGateway) Handle(ctx context.Context, req *gateway.PaymeRequest, authErr error) (*gateway.PaymeResponse, error) {
	args := m.Called(ctx, req, authErr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymeResponse), args.Error(1)
}

var (
	_ service.SettlementService = (*MockSettlementService)(nil)
	_ service.ContractService   = (*MockContractService)(nil)
	_ service.GateService       = (*MockGateService)(nil)
	_ service.DebtService       = (*MockDebtService)(nil)
	_ ClickGateway              = (*MockClickGateway)(nil)
	_ PaymeGateway              = (*MockPaymeGateway)(nil)
)

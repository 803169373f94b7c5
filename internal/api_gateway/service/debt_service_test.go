package service

import (
	"context"
	"testing"
	"time"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDebtService_Outstanding(t *testing.T) {
	ctx := context.Background()
	successOnly := []shared.TransactionStatus{shared.TransactionStatusSuccess}

	t.Run("ManualMultiMonthCoversEveryMonth", func(t *testing.T) {
		students := new(MockStudentRepository)
		contracts := new(MockContractRepository)
		transactions := new(MockTransactionRepository)
		svc := NewDebtService(newTestLogger(), students, contracts, transactions, shared.FixedClock{At: testNow})

		year := 2026
		multi := settledTxn(1, 3, 1, 2)
		multi.PaymentYear = &year
		multi.Amount = decimal.NewFromInt(1500000)

		students.On("GetByID", mock.Anything, int64(7)).Return(&student.Student{ID: 7}, nil)
		contracts.On("ListActiveByStudent", mock.Anything, int64(7)).Return([]*contract.Contract{testContract()}, nil)
		transactions.On("ListByContract", mock.Anything, int64(11), successOnly).Return([]*transaction.Transaction{multi}, nil)

		for _, p := range []shared.Period{{Year: 2026, Month: 1}, {Year: 2026, Month: 2}, {Year: 2026, Month: 3}} {
			summary, err := svc.Outstanding(ctx, 7, p)
			require.NoError(t, err)
			assert.True(t, summary.DebtAmount.IsZero(), "period %s", p)
			assert.Equal(t, 1, summary.ActiveContractCount)
		}

		summary, err := svc.Outstanding(ctx, 7, shared.Period{Year: 2026, Month: 4})
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(500000).Equal(summary.DebtAmount))
	})

	t.Run("MonthOutsideEveryContract", func(t *testing.T) {
		students := new(MockStudentRepository)
		contracts := new(MockContractRepository)
		transactions := new(MockTransactionRepository)
		svc := NewDebtService(newTestLogger(), students, contracts, transactions, shared.FixedClock{At: testNow})

		students.On("GetByID", mock.Anything, int64(7)).Return(&student.Student{ID: 7}, nil).Once()
		contracts.On("ListActiveByStudent", mock.Anything, int64(7)).Return([]*contract.Contract{testContract()}, nil).Once()

		summary, err := svc.Outstanding(ctx, 7, shared.Period{Year: 2024, Month: 1})

		require.NoError(t, err)
		assert.True(t, summary.DebtAmount.IsZero())
		assert.Equal(t, 0, summary.ActiveContractCount)
		transactions.AssertNotCalled(t, "ListByContract", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownStudent", func(t *testing.T) {
		students := new(MockStudentRepository)
		svc := NewDebtService(newTestLogger(), students, new(MockContractRepository), new(MockTransactionRepository), shared.FixedClock{At: testNow})

		students.On("GetByID", mock.Anything, int64(99)).Return(nil, student.ErrStudentNotFound(99)).Once()

		_, err := svc.Outstanding(ctx, 99, december)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("InvalidPeriod", func(t *testing.T) {
		svc := NewDebtService(newTestLogger(), new(MockStudentRepository), new(MockContractRepository), new(MockTransactionRepository), shared.FixedClock{At: testNow})

		_, err := svc.Outstanding(ctx, 7, shared.Period{Year: 2025, Month: 0})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestDebtService_CurrentPeriod(t *testing.T) {
	tashkent := time.FixedZone("UTC+5", 5*60*60)
	// 21:00 UTC on Dec 31 is already January in Tashkent
	clock := shared.FixedClock{At: time.Date(2025, 12, 31, 21, 0, 0, 0, time.UTC).In(tashkent)}
	svc := NewDebtService(newTestLogger(), nil, nil, nil, clock)

	assert.Equal(t, shared.Period{Year: 2026, Month: 1}, svc.CurrentPeriod())
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionRowColumns = []string{"id", "external_id", "amount", "source", "status", "student_id", "contract_id", "payment_year", "payment_months", "comment", "created_by_user_id", "cancel_reason", "paid_at", "cancelled_at", "version", "created_at", "updated_at"}

func sampleTransaction() *transaction.Transaction {
	ext, studentID, contractID, year := "991", int64(7), int64(11), 2025
	created := time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC)
	return &transaction.Transaction{
		ID:            5,
		ExternalID:    &ext,
		Amount:        decimal.NewFromInt(500000),
		Source:        shared.PaymentSourceClick,
		Status:        shared.TransactionStatusPending,
		StudentID:     &studentID,
		ContractID:    &contractID,
		PaymentYear:   &year,
		PaymentMonths: []int{12},
		Comment:       "CLICK prepare 991 for 12/2025",
		Version:       1,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func transactionRow(t *transaction.Transaction) []interface{} {
	return []interface{}{t.ID, t.ExternalID, t.Amount, t.Source, t.Status, t.StudentID, t.ContractID, t.PaymentYear, toInt32s(t.PaymentMonths), t.Comment, t.CreatedByUserID, t.CancelReason, t.PaidAt, t.CancelledAt, t.Version, t.CreatedAt, t.UpdatedAt}
}

func TestTransactionRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	txn := sampleTransaction()
	query := regexp.QuoteMeta("INSERT INTO transactions")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(txn.ExternalID, txn.Amount, txn.Source, txn.Status, txn.StudentID, txn.ContractID, txn.PaymentYear, []int32{12}, txn.Comment, txn.CreatedByUserID, txn.CancelReason, txn.PaidAt, txn.CancelledAt, txn.Version, txn.CreatedAt, txn.UpdatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(77)))

		require.NoError(t, repo.Create(ctx, txn))
		assert.Equal(t, int64(77), txn.ID)
	})

	t.Run("duplicate external id", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(anyArgs(16)...).WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, repo.Create(ctx, txn), shared.ErrConcurrentUpdate)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_LockByExternalID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	expected := sampleTransaction()
	query := regexp.QuoteMeta("WHERE source = $1 AND external_id = $2 FOR UPDATE")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(shared.PaymentSourceClick, "991").
			WillReturnRows(pgxmock.NewRows(transactionRowColumns).AddRow(transactionRow(expected)...))

		txn, err := repo.LockByExternalID(ctx, shared.PaymentSourceClick, "991")
		require.NoError(t, err)
		assert.Equal(t, expected, txn)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(shared.PaymentSourcePayme, "abc").WillReturnError(pgx.ErrNoRows)

		txn, err := repo.LockByExternalID(ctx, shared.PaymentSourcePayme, "abc")
		assert.Nil(t, txn)
		assert.ErrorIs(t, err, shared.NotFoundError{Entity: "transaction"})
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("connection lost")
		mock.ExpectQuery(query).WithArgs(shared.PaymentSourcePayme, "abc").WillReturnError(dbErr)

		_, err := repo.LockByExternalID(ctx, shared.PaymentSourcePayme, "abc")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, shared.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta("UPDATE transactions SET status = $1")

	t.Run("success bumps version", func(t *testing.T) {
		txn := sampleTransaction()
		require.NoError(t, txn.Confirm(txn.CreatedAt.Add(time.Minute)))

		mock.ExpectExec(query).
			WithArgs(shared.TransactionStatusSuccess, txn.StudentID, txn.ContractID, txn.PaymentYear, []int32{12}, txn.Comment, txn.CancelReason, txn.PaidAt, txn.CancelledAt, txn.UpdatedAt, txn.ID, 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(ctx, txn))
		assert.Equal(t, 2, txn.Version)
	})

	t.Run("stale version", func(t *testing.T) {
		txn := sampleTransaction()
		mock.ExpectExec(query).WithArgs(anyArgs(12)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, txn)
		assert.ErrorIs(t, err, shared.ErrConcurrentUpdate)
		assert.Equal(t, 1, txn.Version)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListByContract(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	wrapped := sampleTransaction()
	wrapped.PaymentMonths = []int{12, 1, 2}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE contract_id = $1 AND status = ANY($2)")).
		WithArgs(int64(11), []string{"SUCCESS", "PENDING"}).
		WillReturnRows(pgxmock.NewRows(transactionRowColumns).AddRow(transactionRow(wrapped)...))

	txns, err := repo.ListByContract(ctx, 11, shared.TransactionStatusSuccess, shared.TransactionStatusPending)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, []int{12, 1, 2}, txns[0].PaymentMonths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_List(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	status := shared.TransactionStatusUnassigned
	filter := transaction.Filter{Status: &status, Limit: 20, Offset: 40}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions WHERE status = $1")).
		WithArgs(status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(41)))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs(status, 20, 40).
		WillReturnRows(pgxmock.NewRows(transactionRowColumns).AddRow(transactionRow(sampleTransaction())...))

	txns, total, err := repo.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(41), total)
	assert.Len(t, txns, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterClause(t *testing.T) {
	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	studentID := int64(3)
	source := shared.PaymentSourcePayme

	where, args := filterClause(transaction.Filter{From: &from, Source: &source, StudentID: &studentID})
	assert.Equal(t, " WHERE created_at >= $1 AND source = $2 AND student_id = $3", where)
	assert.Equal(t, []interface{}{from, source, studentID}, args)

	where, args = filterClause(transaction.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestTransactionRepository_ListSettledBetween(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta("paid_at >= $3 AND paid_at < $4")).
		WithArgs(shared.PaymentSourceClick, shared.TransactionStatusSuccess, from, to).
		WillReturnRows(pgxmock.NewRows(transactionRowColumns))

	txns, err := repo.ListSettledBetween(ctx, shared.PaymentSourceClick, from, to)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

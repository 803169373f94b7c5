package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anyArgs matches n arguments of any value
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var contractRowColumns = []string{"id", "contract_number", "student_id", "group_id", "birth_year", "sequence_number", "monthly_fee", "start_date", "end_date", "status", "version", "created_at", "updated_at"}

func contractRow(c *contract.Contract) []interface{} {
	return []interface{}{c.ID, c.Number, c.StudentID, c.GroupID, c.BirthYear, c.SequenceNumber, c.MonthlyFee, c.StartDate, c.EndDate, c.Status, c.Version, c.CreatedAt, c.UpdatedAt}
}

func sampleContract() *contract.Contract {
	groupID, seq := int64(4), 3
	now := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	return &contract.Contract{
		ID:             11,
		Number:         "N32020",
		StudentID:      7,
		GroupID:        &groupID,
		BirthYear:      2020,
		SequenceNumber: &seq,
		MonthlyFee:     decimal.NewFromInt(500000),
		StartDate:      time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		Status:         shared.ContractStatusActive,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestContractRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContractRepository{querier: mock, logger: newTestLogger()}
	c := sampleContract()
	query := regexp.QuoteMeta("INSERT INTO contracts")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(c.Number, c.StudentID, c.GroupID, c.BirthYear, c.SequenceNumber, c.MonthlyFee, c.StartDate, c.EndDate, c.Status, c.Version, c.CreatedAt, c.UpdatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))

		require.NoError(t, repo.Create(ctx, c))
		assert.Equal(t, int64(12), c.ID)
	})

	t.Run("number taken", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(anyArgs(12)...).WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(ctx, c)
		assert.ErrorIs(t, err, shared.ErrConcurrentUpdate)
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectQuery(query).WithArgs(anyArgs(12)...).WillReturnError(expectedErr)

		err := repo.Create(ctx, c)
		assert.ErrorIs(t, err, expectedErr)
		assert.NotErrorIs(t, err, shared.ErrConcurrentUpdate)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepository_LockByNumber(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContractRepository{querier: mock, logger: newTestLogger()}
	expected := sampleContract()
	query := regexp.QuoteMeta("WHERE contract_number = $1 AND status = 'ACTIVE' FOR UPDATE")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("N32020").
			WillReturnRows(pgxmock.NewRows(contractRowColumns).AddRow(contractRow(expected)...))

		c, err := repo.LockByNumber(ctx, "N32020")
		require.NoError(t, err)
		assert.Equal(t, expected, c)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("N99").WillReturnError(pgx.ErrNoRows)

		c, err := repo.LockByNumber(ctx, "N99")
		assert.Nil(t, c)
		assert.ErrorIs(t, err, shared.NotFoundError{Entity: "contract"})
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContractRepository{querier: mock, logger: newTestLogger()}
	expected := sampleContract()
	expected.GroupID = nil
	expected.SequenceNumber = nil

	mock.ExpectQuery(regexp.QuoteMeta("FROM contracts WHERE id = $1")).WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(contractRowColumns).AddRow(contractRow(expected)...))

	c, err := repo.GetByID(ctx, 11)
	require.NoError(t, err)
	assert.Nil(t, c.GroupID)
	assert.Nil(t, c.SequenceNumber)
	assert.True(t, decimal.NewFromInt(500000).Equal(c.MonthlyFee))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepository_ListActiveByStudent(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContractRepository{querier: mock, logger: newTestLogger()}
	c := sampleContract()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND status = $2")).
		WithArgs(int64(7), shared.ContractStatusActive).
		WillReturnRows(pgxmock.NewRows(contractRowColumns).AddRow(contractRow(c)...))

	contracts, err := repo.ListActiveByStudent(ctx, 7)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "N32020", contracts[0].Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContractRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta("UPDATE contracts SET status = $1, version = version + 1")

	tests := []struct {
		name        string
		affected    int64
		expectedErr error
	}{
		{"success", 1, nil},
		{"stale version", 0, shared.ErrConcurrentUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec(query).
				WithArgs(shared.ContractStatusCancelled, int64(11), 1).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.UpdateStatus(ctx, 11, shared.ContractStatusCancelled, 1)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepository_UsedSequences(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ContractRepository{querier: mock, logger: newTestLogger()}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sequence_number FROM contracts")).
		WithArgs(int64(4), 2020).
		WillReturnRows(pgxmock.NewRows([]string{"sequence_number"}).AddRow(1).AddRow(2).AddRow(4))

	used, err := repo.UsedSequences(ctx, contract.Scope{GroupID: 4, BirthYear: 2020})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

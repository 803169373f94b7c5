package contract

import (
	"testing"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		c, err := New("CON-2025-001", 7, decimal.NewFromInt(500000), date(2025, 9, 1), date(2026, 5, 31))
		require.NoError(t, err)
		assert.Equal(t, shared.ContractStatusActive, c.Status)
		assert.Equal(t, 1, c.Version)
		assert.Equal(t, int64(7), c.StudentID)
	})

	tests := []struct {
		name  string
		num   string
		fee   decimal.Decimal
		start time.Time
		end   time.Time
	}{
		{"empty number", "", decimal.NewFromInt(1), date(2025, 1, 1), date(2025, 2, 1)},
		{"zero fee", "N1", decimal.Zero, date(2025, 1, 1), date(2025, 2, 1)},
		{"end before start", "N1", decimal.NewFromInt(1), date(2025, 3, 1), date(2025, 2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.num, 1, tt.fee, tt.start, tt.end)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}
}

func TestContract_Windows(t *testing.T) {
	c := &Contract{
		Status:    shared.ContractStatusActive,
		StartDate: date(2025, 9, 15),
		EndDate:   date(2026, 1, 10),
	}

	assert.True(t, c.CoversMonth(shared.Period{Year: 2025, Month: 9}))
	assert.True(t, c.CoversMonth(shared.Period{Year: 2026, Month: 1}))
	assert.False(t, c.CoversMonth(shared.Period{Year: 2025, Month: 8}))
	assert.False(t, c.CoversMonth(shared.Period{Year: 2026, Month: 2}))

	assert.True(t, c.ActiveOn(time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)))
	assert.False(t, c.ActiveOn(date(2026, 1, 11)))
	assert.False(t, c.ActiveOn(date(2025, 9, 14)))

	c.Status = shared.ContractStatusCompleted
	assert.False(t, c.ActiveOn(date(2025, 10, 1)))
}

func TestContract_Terminate(t *testing.T) {
	c := &Contract{ID: 3, Status: shared.ContractStatusActive}
	require.NoError(t, c.Terminate(shared.ContractStatusCancelled))
	assert.Equal(t, shared.ContractStatusCancelled, c.Status)

	err := c.Terminate(shared.ContractStatusCompleted)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	err = (&Contract{Status: shared.ContractStatusActive}).Terminate(shared.ContractStatusActive)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSmallestFree(t *testing.T) {
	scope := Scope{GroupID: 4, BirthYear: 2020}

	n, err := SmallestFree(scope, []int{1, 2, 4}, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// a freed number is reused before any higher unused one
	n, err = SmallestFree(scope, []int{2, 3, 4}, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = SmallestFree(scope, []int{1, 2, 3}, 3)
	assert.ErrorIs(t, err, shared.ErrCapacityExceeded)

	assert.Equal(t, []int{2, 5}, FreeSequences([]int{1, 3, 4, 9}, 5))
}

func TestRenderNumber(t *testing.T) {
	assert.Equal(t, "N12020", RenderNumber("N", 1, 2020))
	assert.Equal(t, "N122012", RenderNumber("N", 12, 2012))
	assert.Equal(t, "contract-scope:4:2020", Scope{GroupID: 4, BirthYear: 2020}.LockKey())
}

package contract

import (
	"time"

	"github.com/academy-ledger/internal/domain/money"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Contract is a student's enrollment agreement. At most one contract per student is ACTIVE.
type Contract struct {
	ID             int64                 `json:"id"`
	Number         string                `json:"contract_number"`
	StudentID      int64                 `json:"student_id"`
	GroupID        *int64                `json:"group_id,omitempty"`
	BirthYear      int                   `json:"birth_year"`
	SequenceNumber *int                  `json:"sequence_number,omitempty"`
	MonthlyFee     decimal.Decimal       `json:"monthly_fee"`
	StartDate      time.Time             `json:"start_date"`
	EndDate        time.Time             `json:"end_date"` // inclusive
	Status         shared.ContractStatus `json:"status"`
	Version        int                   `json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// New validates the terms and builds an ACTIVE contract.
func New(number string, studentID int64, monthlyFee decimal.Decimal, start, end time.Time) (*Contract, error) {
	if number == "" {
		return nil, shared.InvalidInputError{Field: "contract_number", Reason: "must not be empty"}
	}
	if !money.ValidAmount(monthlyFee) {
		return nil, shared.InvalidInputError{Field: "monthly_fee", Reason: "must be a positive amount with at most 2 decimals"}
	}
	start, end = dateOnly(start), dateOnly(end)
	if end.Before(start) {
		return nil, shared.InvalidInputError{Field: "end_date", Reason: "must not be before start_date"}
	}

	now := time.Now()
	return &Contract{
		Number:     number,
		StudentID:  studentID,
		MonthlyFee: monthlyFee,
		StartDate:  start,
		EndDate:    end,
		Status:     shared.ContractStatusActive,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (c *Contract) IsActive() bool {
	return c.Status == shared.ContractStatusActive
}

// ActiveOn reports whether the contract is ACTIVE and day falls inside its window.
func (c *Contract) ActiveOn(day time.Time) bool {
	d := dateOnly(day).Format(dateLayout)
	return c.IsActive() && d >= c.StartDate.Format(dateLayout) && d <= c.EndDate.Format(dateLayout)
}

// CoversMonth reports whether period lies within the contract's validity window at month granularity.
func (c *Contract) CoversMonth(p shared.Period) bool {
	first := shared.PeriodOf(c.StartDate).Index()
	last := shared.PeriodOf(c.EndDate).Index()
	return p.Index() >= first && p.Index() <= last
}

// Terminate moves an ACTIVE contract to a terminal status, releasing its sequence number.
func (c *Contract) Terminate(status shared.ContractStatus) error {
	if status != shared.ContractStatusCompleted && status != shared.ContractStatusCancelled {
		return shared.InvalidInputError{Field: "status", Reason: "must be COMPLETED or CANCELLED"}
	}
	if !c.IsActive() {
		return shared.InvalidStateError{Entity: "contract", ID: c.ID, From: string(c.Status), Action: "terminate"}
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Package debt computes month coverage and outstanding balances from ledger state.
// Everything here is a pure function of the contracts and transactions passed in;
// callers are responsible for reading them inside the right lock scope.
package debt

import (
	"time"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/shopspring/decimal"
)

// Book pairs a contract with the transactions recorded against it.
type Book struct {
	Contract     *contract.Contract
	Transactions []*transaction.Transaction
}

// Summary is the outstanding position of a student for one month.
type Summary struct {
	StudentID           int64           `json:"student_id"`
	Period              shared.Period   `json:"period"`
	ExpectedTotal       decimal.Decimal `json:"expected_total"`
	PaidTotal           decimal.Decimal `json:"paid_total"`
	DebtAmount          decimal.Decimal `json:"debt_amount"`
	ActiveContractCount int             `json:"active_contract_count"`
}

func (s Summary) HasDebt() bool {
	return s.DebtAmount.IsPositive()
}

// PaidFor sums the per-month allocation of every SUCCESS transaction of c covering p.
func PaidFor(c *contract.Contract, txns []*transaction.Transaction, p shared.Period) decimal.Decimal {
	paid := decimal.Zero
	for _, t := range txns {
		if t.Status != shared.TransactionStatusSuccess || t.ContractID == nil || *t.ContractID != c.ID {
			continue
		}
		if share, ok := t.AllocatedTo(p); ok {
			paid = paid.Add(share)
		}
	}
	return paid
}

// IsMonthCovered reports whether SUCCESS transactions fully offset the monthly fee for p.
func IsMonthCovered(c *contract.Contract, txns []*transaction.Transaction, p shared.Period) bool {
	return PaidFor(c, txns, p).GreaterThanOrEqual(c.MonthlyFee)
}

// HasPendingFor reports whether a PENDING transaction of c other than exclude,
// created after heldSince, targets p.
func HasPendingFor(c *contract.Contract, txns []*transaction.Transaction, p shared.Period, exclude int64, heldSince time.Time) bool {
	for _, t := range txns {
		if t.ID == exclude || t.Status != shared.TransactionStatusPending || !t.CreatedAt.After(heldSince) {
			continue
		}
		if t.ContractID != nil && *t.ContractID == c.ID && t.Covers(p) {
			return true
		}
	}
	return false
}

// Outstanding sums the expected fee of every ACTIVE contract whose window includes p
// against the allocated SUCCESS payments. No contract means no obligation.
func Outstanding(studentID int64, books []Book, p shared.Period) Summary {
	summary := Summary{
		StudentID:     studentID,
		Period:        p,
		ExpectedTotal: decimal.Zero,
		PaidTotal:     decimal.Zero,
		DebtAmount:    decimal.Zero,
	}

	for _, b := range books {
		if b.Contract == nil || !b.Contract.IsActive() || !b.Contract.CoversMonth(p) {
			continue
		}
		summary.ActiveContractCount++
		summary.ExpectedTotal = summary.ExpectedTotal.Add(b.Contract.MonthlyFee)
		summary.PaidTotal = summary.PaidTotal.Add(PaidFor(b.Contract, b.Transactions, p))
	}

	if diff := summary.ExpectedTotal.Sub(summary.PaidTotal); diff.IsPositive() {
		summary.DebtAmount = diff
	}
	return summary
}

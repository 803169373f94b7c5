package service

import (
	"context"
	"log/slog"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/debt"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
	"github.com/academy-ledger/internal/domain/transaction"
)

// DebtServiceImpl loads a student's ledger and hands it to the debt engine
type DebtServiceImpl struct {
	students     student.Repository
	contracts    contract.Repository
	transactions transaction.Repository
	clock        shared.Clock
	logger       *slog.Logger
}

func NewDebtService(logger *slog.Logger, students student.Repository, contracts contract.Repository, transactions transaction.Repository, clock shared.Clock) DebtService {
	return &DebtServiceImpl{
		students:     students,
		contracts:    contracts,
		transactions: transactions,
		clock:        clock,
		logger:       logger,
	}
}

// CurrentPeriod is the month of the server clock in the application timezone
func (s *DebtServiceImpl) CurrentPeriod() shared.Period {
	return shared.PeriodOf(s.clock.Now())
}

func (s *DebtServiceImpl) Outstanding(ctx context.Context, studentID int64, period shared.Period) (*debt.Summary, error) {
	if _, err := shared.NewPeriod(period.Year, period.Month); err != nil {
		return nil, err
	}
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	contracts, err := s.contracts.ListActiveByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("Failed to load contracts for debt", "student_id", studentID, "error", err)
		return nil, err
	}

	books := make([]debt.Book, 0, len(contracts))
	for _, c := range contracts {
		if !c.CoversMonth(period) {
			continue
		}
		txns, err := s.transactions.ListByContract(ctx, c.ID, shared.TransactionStatusSuccess)
		if err != nil {
			s.logger.Error("Failed to load transactions for debt", "student_id", studentID, "contract_id", c.ID, "error", err)
			return nil, err
		}
		books = append(books, debt.Book{Contract: c, Transactions: txns})
	}

	summary := debt.Outstanding(studentID, books, period)
	return &summary, nil
}

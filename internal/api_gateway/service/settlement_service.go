package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/debt"
	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/money"
	"github.com/academy-ledger/internal/domain/outbox"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// ledgerTx groups the repositories bound to one database transaction
type ledgerTx struct {
	transactions transaction.Repository
	contracts    contract.Repository
	students     student.Repository
	outbox       outbox.Repository
}

// SettlementServiceImpl implements SettlementService. Every write locks the contract row
// before the transaction row and commits the state change together with its outbox message.
type SettlementServiceImpl struct {
	db          persistence.TxBeginner
	repos       ledgerTx
	journal     journal.Repository
	clock       shared.Clock
	pendingHold time.Duration
	logger      *slog.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	logger *slog.Logger,
	db persistence.TxBeginner,
	transactions transaction.Repository,
	contracts contract.Repository,
	students student.Repository,
	outboxRepo outbox.Repository,
	journalRepo journal.Repository,
	clock shared.Clock,
	pendingHold time.Duration,
) SettlementService {
	return &SettlementServiceImpl{
		db: db,
		repos: ledgerTx{
			transactions: transactions,
			contracts:    contracts,
			students:     students,
			outbox:       outboxRepo,
		},
		journal:     journalRepo,
		clock:       clock,
		pendingHold: pendingHold,
		logger:      logger,
	}
}

func (s *SettlementServiceImpl) bind(tx pgx.Tx) ledgerTx {
	return ledgerTx{
		transactions: s.repos.transactions.WithTx(tx),
		contracts:    s.repos.contracts.WithTx(tx),
		students:     s.repos.students.WithTx(tx),
		outbox:       s.repos.outbox.WithTx(tx),
	}
}

func (s *SettlementServiceImpl) loggerFor(ctx context.Context) *slog.Logger {
	if id := shared.CorrelationID(ctx); id != "" {
		return s.logger.With("correlation_id", id)
	}
	return s.logger
}

func (s *SettlementServiceImpl) inTx(ctx context.Context, operation string, fn func(r ledgerTx) error) error {
	return retryOnConflict(s.loggerFor(ctx), operation, func() error {
		return persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
			return fn(s.bind(tx))
		})
	})
}

// retryOnConflict runs fn again once after an optimistic-lock conflict and reports a
// second conflict as shared.ErrConflict.
func retryOnConflict(logger *slog.Logger, operation string, fn func() error) error {
	err := fn()
	if !errors.Is(err, shared.ErrConcurrentUpdate) {
		return err
	}

	logger.Warn("Concurrent modification, retrying", "operation", operation, "error", err)
	if err = fn(); errors.Is(err, shared.ErrConcurrentUpdate) {
		return fmt.Errorf("%w: %v", shared.ErrConflict, err)
	}
	return err
}

func (s *SettlementServiceImpl) publish(ctx context.Context, r ledgerTx, txn *transaction.Transaction, eventType shared.SettlementEventType, previous shared.TransactionStatus) error {
	msg, err := outbox.NewMessage(outbox.NewEvent(txn, eventType, previous, shared.CorrelationID(ctx)))
	if err != nil {
		return fmt.Errorf("failed to encode settlement event: %w", err)
	}
	if err := r.outbox.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to write outbox message: %w", err)
	}
	return nil
}

// CreateManual settles a staff-entered payment against an ACTIVE contract
func (s *SettlementServiceImpl) CreateManual(ctx context.Context, req ManualPaymentRequest) (*transaction.Transaction, error) {
	logger := s.loggerFor(ctx)
	if req.Source.IsGateway() {
		return nil, shared.InvalidInputError{Field: "source", Reason: "gateway payments are created through the gateway callbacks"}
	}

	var created *transaction.Transaction
	err := s.inTx(ctx, "create_manual", func(r ledgerTx) error {
		c, err := r.contracts.LockByNumber(ctx, req.ContractNumber)
		if err != nil {
			return err
		}

		txn, err := transaction.NewManual(req.Amount, req.Source, c.ID, c.StudentID, req.Year, req.Months, req.Comment, req.ActorID, s.clock.Now())
		if err != nil {
			return err
		}
		if err := r.transactions.Create(ctx, txn); err != nil {
			return err
		}
		created = txn
		return s.publish(ctx, r, txn, shared.EventTransactionSettled, "")
	})
	if err != nil {
		logger.Error("Failed to create manual transaction", "contract_number", req.ContractNumber, "error", err)
		return nil, err
	}

	logger.Info("Manual transaction created",
		"transaction_id", created.ID,
		"contract_id", *created.ContractID,
		"amount", created.Amount.StringFixed(money.LedgerPlaces),
		"months", created.PaymentMonths,
	)
	return created, nil
}

func validatePrepare(req PrepareRequest) error {
	if !req.Provider.IsGateway() {
		return shared.InvalidInputError{Field: "provider", Reason: fmt.Sprintf("%q has no two-phase protocol", req.Provider)}
	}
	if !money.ValidAmount(req.Amount) {
		return shared.InvalidInputError{Field: "amount", Reason: "must be a positive amount with at most 2 decimals"}
	}
	_, err := shared.NewPeriod(req.Period.Year, req.Period.Month)
	return err
}

// evaluatePrepare applies the prepare checks in order: contract resolution and window,
// month coverage, a competing PENDING hold, then the amount.
func (s *SettlementServiceImpl) evaluatePrepare(ctx context.Context, r ledgerTx, req PrepareRequest, lock bool) (*contract.Contract, error) {
	var (
		c   *contract.Contract
		err error
	)
	if lock {
		c, err = r.contracts.LockByNumber(ctx, req.ContractNumber)
	} else {
		c, err = r.contracts.GetByNumber(ctx, req.ContractNumber)
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !c.ActiveOn(now) || !c.CoversMonth(req.Period) {
		return nil, contract.ErrContractNotFound(req.ContractNumber)
	}

	txns, err := r.transactions.ListByContract(ctx, c.ID, shared.TransactionStatusSuccess, shared.TransactionStatusPending)
	if err != nil {
		return nil, err
	}
	if debt.IsMonthCovered(c, txns, req.Period) {
		return nil, shared.AlreadyPaidError{ContractID: c.ID, Period: req.Period}
	}
	if debt.HasPendingFor(c, txns, req.Period, 0, now.Add(-s.pendingHold)) {
		return nil, shared.AlreadyPaidError{ContractID: c.ID, Period: req.Period, Pending: true}
	}
	if req.Amount.LessThan(c.MonthlyFee) {
		return nil, shared.InsufficientAmountError{Expected: c.MonthlyFee, Got: req.Amount}
	}
	return c, nil
}

// CheckPrepare runs the prepare checks outside a transaction; nothing is written
func (s *SettlementServiceImpl) CheckPrepare(ctx context.Context, req PrepareRequest) (*contract.Contract, error) {
	if err := validatePrepare(req); err != nil {
		return nil, err
	}
	return s.evaluatePrepare(ctx, s.repos, req, false)
}

// Prepare creates the PENDING transaction of a gateway payment. A prepare repeated with
// the same external id returns the stored transaction whatever its status.
func (s *SettlementServiceImpl) Prepare(ctx context.Context, req PrepareRequest) (*transaction.Transaction, error) {
	logger := s.loggerFor(ctx)
	if err := validatePrepare(req); err != nil {
		return nil, err
	}
	if req.ExternalID == "" {
		return nil, shared.InvalidInputError{Field: "external_id", Reason: "must not be empty"}
	}

	var (
		result *transaction.Transaction
		replay bool
	)
	err := s.inTx(ctx, "prepare", func(r ledgerTx) error {
		existing, err := r.transactions.GetByExternalID(ctx, req.Provider, req.ExternalID)
		if err == nil {
			result, replay = existing, true
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		c, err := s.evaluatePrepare(ctx, r, req, true)
		if err != nil {
			return err
		}

		txn := transaction.NewPending(req.Provider, req.ExternalID, req.Amount, c.ID, c.StudentID, req.Period, s.clock.Now())
		if err := r.transactions.Create(ctx, txn); err != nil {
			return err
		}
		result, replay = txn, false
		return s.publish(ctx, r, txn, shared.EventTransactionPrepared, "")
	})
	if err != nil {
		logger.Info("Prepare rejected",
			"provider", req.Provider,
			"external_id", req.ExternalID,
			"contract_number", req.ContractNumber,
			"period", req.Period.String(),
			"error", err,
		)
		return nil, err
	}

	if replay {
		logger.Info("Prepare replayed", "provider", req.Provider, "external_id", req.ExternalID, "transaction_id", result.ID, "status", result.Status)
	} else {
		logger.Info("Transaction prepared", "provider", req.Provider, "external_id", req.ExternalID, "transaction_id", result.ID, "period", req.Period.String())
	}
	return result, nil
}

// Confirm settles a PENDING transaction. The month coverage is evaluated again under the
// contract lock; if another SUCCESS already covers it, the transaction is cancelled and
// AlreadyPaid is returned.
func (s *SettlementServiceImpl) Confirm(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	logger := s.loggerFor(ctx)

	var (
		result   *transaction.Transaction
		rejected error
	)
	err := s.inTx(ctx, "confirm", func(r ledgerTx) error {
		rejected = nil

		found, err := r.transactions.GetByExternalID(ctx, provider, externalID)
		if err != nil {
			return err
		}
		if found.Status == shared.TransactionStatusSuccess {
			result = found
			return nil
		}
		if found.Status != shared.TransactionStatusPending || found.ContractID == nil {
			return found.Confirm(s.clock.Now())
		}

		c, err := r.contracts.LockByID(ctx, *found.ContractID)
		if err != nil {
			return err
		}
		txn, err := r.transactions.LockByExternalID(ctx, provider, externalID)
		if err != nil {
			return err
		}
		if txn.Status == shared.TransactionStatusSuccess {
			result = txn
			return nil
		}

		settled, err := r.transactions.ListByContract(ctx, c.ID, shared.TransactionStatusSuccess)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		previous := txn.Status
		for _, p := range txn.Periods() {
			if !debt.IsMonthCovered(c, settled, p) {
				continue
			}
			if err := txn.Cancel(transaction.CancelReasonExecutionError, now); err != nil {
				return err
			}
			txn.Comment = fmt.Sprintf("duplicate month %s", p)
			if err := r.transactions.Update(ctx, txn); err != nil {
				return err
			}
			result = txn
			rejected = shared.AlreadyPaidError{ContractID: c.ID, Period: p}
			return s.publish(ctx, r, txn, shared.EventTransactionCancelled, previous)
		}

		if err := txn.Confirm(now); err != nil {
			return err
		}
		if err := r.transactions.Update(ctx, txn); err != nil {
			return err
		}
		result = txn
		return s.publish(ctx, r, txn, shared.EventTransactionSettled, previous)
	})
	if err != nil {
		logger.Error("Failed to confirm transaction", "provider", provider, "external_id", externalID, "error", err)
		return nil, err
	}
	if rejected != nil {
		logger.Warn("Confirm cancelled a duplicate month payment", "transaction_id", result.ID, "error", rejected)
		return result, rejected
	}

	logger.Info("Transaction confirmed", "provider", provider, "external_id", externalID, "transaction_id", result.ID)
	return result, nil
}

// Check reads the transaction without locking or changing it
func (s *SettlementServiceImpl) Check(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	return s.repos.transactions.GetByExternalID(ctx, provider, externalID)
}

// cancelLocked locks the transaction's contract, then the transaction, and cancels it
func (s *SettlementServiceImpl) cancelLocked(ctx context.Context, r ledgerTx, found *transaction.Transaction, lockTxn func() (*transaction.Transaction, error), reason int) (*transaction.Transaction, error) {
	if found.ContractID != nil {
		if _, err := r.contracts.LockByID(ctx, *found.ContractID); err != nil {
			return nil, err
		}
	}
	txn, err := lockTxn()
	if err != nil {
		return nil, err
	}

	previous := txn.Status
	if err := txn.Cancel(reason, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := r.transactions.Update(ctx, txn); err != nil {
		return nil, err
	}
	return txn, s.publish(ctx, r, txn, shared.EventTransactionCancelled, previous)
}

// Cancel moves a gateway transaction from PENDING or SUCCESS to CANCELLED
func (s *SettlementServiceImpl) Cancel(ctx context.Context, provider shared.PaymentSource, externalID string, reason int) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := s.inTx(ctx, "cancel", func(r ledgerTx) error {
		found, err := r.transactions.GetByExternalID(ctx, provider, externalID)
		if err != nil {
			return err
		}
		result, err = s.cancelLocked(ctx, r, found, func() (*transaction.Transaction, error) {
			return r.transactions.LockByExternalID(ctx, provider, externalID)
		}, reason)
		return err
	})
	if err != nil {
		s.loggerFor(ctx).Info("Cancel rejected", "provider", provider, "external_id", externalID, "error", err)
		return nil, err
	}

	s.loggerFor(ctx).Info("Transaction cancelled", "provider", provider, "external_id", externalID, "transaction_id", result.ID, "reason", reason)
	return result, nil
}

// CancelByID is the administrative reversal. The months the transaction covered are not
// re-opened explicitly; they stop counting once the status changes.
func (s *SettlementServiceImpl) CancelByID(ctx context.Context, id int64, reason int) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := s.inTx(ctx, "cancel_by_id", func(r ledgerTx) error {
		found, err := r.transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		result, err = s.cancelLocked(ctx, r, found, func() (*transaction.Transaction, error) {
			return r.transactions.LockByID(ctx, id)
		}, reason)
		return err
	})
	if err != nil {
		s.loggerFor(ctx).Info("Cancel rejected", "transaction_id", id, "error", err)
		return nil, err
	}

	s.loggerFor(ctx).Info("Transaction cancelled", "transaction_id", id, "reason", reason)
	return result, nil
}

// Fail records a gateway-reported failure of a PENDING transaction
func (s *SettlementServiceImpl) Fail(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := s.inTx(ctx, "fail", func(r ledgerTx) error {
		txn, err := r.transactions.LockByExternalID(ctx, provider, externalID)
		if err != nil {
			return err
		}
		previous := txn.Status
		if err := txn.Fail(s.clock.Now()); err != nil {
			return err
		}
		if err := r.transactions.Update(ctx, txn); err != nil {
			return err
		}
		result = txn
		return s.publish(ctx, r, txn, shared.EventTransactionFailed, previous)
	})
	if err != nil {
		s.loggerFor(ctx).Info("Fail rejected", "provider", provider, "external_id", externalID, "error", err)
		return nil, err
	}

	s.loggerFor(ctx).Info("Transaction failed by provider", "provider", provider, "external_id", externalID, "transaction_id", result.ID)
	return result, nil
}

// RecordUnassigned stores a successful payment that matched no contract. It is idempotent
// on (source, external id).
func (s *SettlementServiceImpl) RecordUnassigned(ctx context.Context, req UnassignedPaymentRequest) (*transaction.Transaction, error) {
	now := s.clock.Now()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	var result *transaction.Transaction
	err := s.inTx(ctx, "record_unassigned", func(r ledgerTx) error {
		existing, err := r.transactions.GetByExternalID(ctx, req.Source, req.ExternalID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		txn, err := transaction.NewUnassigned(req.Source, req.ExternalID, req.Amount, paidAt, req.Comment, now)
		if err != nil {
			return err
		}
		if err := r.transactions.Create(ctx, txn); err != nil {
			return err
		}
		result = txn
		return s.publish(ctx, r, txn, shared.EventTransactionUnassigned, "")
	})
	if err != nil {
		s.loggerFor(ctx).Error("Failed to record unassigned payment", "source", req.Source, "external_id", req.ExternalID, "error", err)
		return nil, err
	}

	s.loggerFor(ctx).Info("Unassigned payment recorded", "transaction_id", result.ID, "source", result.Source, "status", result.Status)
	return result, nil
}

// Assign attaches an UNASSIGNED transaction to a contract of the given student and settles it
func (s *SettlementServiceImpl) Assign(ctx context.Context, id int64, req AssignRequest) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := s.inTx(ctx, "assign", func(r ledgerTx) error {
		if _, err := r.students.GetByID(ctx, req.StudentID); err != nil {
			return err
		}
		c, err := r.contracts.LockByID(ctx, req.ContractID)
		if err != nil {
			return err
		}
		if c.StudentID != req.StudentID {
			return shared.InvalidInputError{Field: "contract_id", Reason: fmt.Sprintf("contract %d does not belong to student %d", c.ID, req.StudentID)}
		}

		txn, err := r.transactions.LockByID(ctx, id)
		if err != nil {
			return err
		}

		year, months := req.Year, req.Months
		if year == 0 || len(months) == 0 {
			paid := s.clock.Now()
			if txn.PaidAt != nil {
				paid = txn.PaidAt.In(paid.Location())
			}
			p := shared.PeriodOf(paid)
			year, months = p.Year, []int{p.Month}
		}

		previous := txn.Status
		if err := txn.Assign(req.StudentID, c.ID, year, months, s.clock.Now()); err != nil {
			return err
		}
		if err := r.transactions.Update(ctx, txn); err != nil {
			return err
		}
		result = txn
		return s.publish(ctx, r, txn, shared.EventTransactionAssigned, previous)
	})
	if err != nil {
		s.loggerFor(ctx).Info("Assign rejected", "transaction_id", id, "contract_id", req.ContractID, "error", err)
		return nil, err
	}

	s.loggerFor(ctx).Info("Transaction assigned", "transaction_id", id, "student_id", req.StudentID, "contract_id", req.ContractID)
	return result, nil
}

func (s *SettlementServiceImpl) Get(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return s.repos.transactions.GetByID(ctx, id)
}

func (s *SettlementServiceImpl) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	txns, total, err := s.repos.transactions.List(ctx, filter)
	if err != nil {
		s.loggerFor(ctx).Error("Failed to list transactions", "error", err)
		return nil, 0, err
	}
	return txns, total, nil
}

func (s *SettlementServiceImpl) ListUnassigned(ctx context.Context, limit, offset int) ([]*transaction.Transaction, int64, error) {
	status := shared.TransactionStatusUnassigned
	return s.List(ctx, transaction.Filter{Status: &status, Limit: limit, Offset: offset})
}

func (s *SettlementServiceImpl) Reconcile(ctx context.Context, provider shared.PaymentSource, from, to time.Time) ([]*transaction.Transaction, error) {
	if !to.After(from) {
		return nil, shared.InvalidInputError{Field: "till_date", Reason: "must be after from_date"}
	}
	return s.repos.transactions.ListSettledBetween(ctx, provider, from, to)
}

func (s *SettlementServiceImpl) Journal(ctx context.Context, id int64) ([]*journal.Record, error) {
	if _, err := s.repos.transactions.GetByID(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.journal.ListByTransaction(ctx, id)
	if err != nil {
		s.loggerFor(ctx).Error("Failed to read settlement journal", "transaction_id", id, "error", err)
		return nil, err
	}
	return records, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const transactionColumns = `id, external_id, amount, source, status, student_id, contract_id, payment_year, payment_months, comment, created_by_user_id, cancel_reason, paid_at, cancelled_at, version, created_at, updated_at`

func toInt32s(months []int) []int32 {
	out := make([]int32, len(months))
	for i, m := range months {
		out[i] = int32(m)
	}
	return out
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		t      transaction.Transaction
		months []int32
	)
	err := row.Scan(
		&t.ID,
		&t.ExternalID,
		&t.Amount,
		&t.Source,
		&t.Status,
		&t.StudentID,
		&t.ContractID,
		&t.PaymentYear,
		&months,
		&t.Comment,
		&t.CreatedByUserID,
		&t.CancelReason,
		&t.PaidAt,
		&t.CancelledAt,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.PaymentMonths = make([]int, len(months))
	for i, m := range months {
		t.PaymentMonths[i] = int(m)
	}
	return &t, nil
}

func (r *TransactionRepository) collect(rows pgx.Rows) ([]*transaction.Transaction, error) {
	defer rows.Close()

	txns := []*transaction.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}
	return txns, nil
}

// Create inserts the transaction. A second row with the same (source, external_id)
// is rejected by the database and reported as a concurrent modification.
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (external_id, amount, source, status, student_id, contract_id, payment_year, payment_months, comment, created_by_user_id, cancel_reason, paid_at, cancelled_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		t.ExternalID,
		t.Amount,
		t.Source,
		t.Status,
		t.StudentID,
		t.ContractID,
		t.PaymentYear,
		toInt32s(t.PaymentMonths),
		t.Comment,
		t.CreatedByUserID,
		t.CancelReason,
		t.PaidAt,
		t.CancelledAt,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			r.logger.Warn("Duplicate external transaction", "source", string(t.Source), "external_id", t.ExternalKey())
			return shared.ConcurrentModificationError{Entity: "transaction"}
		}
		r.logger.Error("Failed to create transaction", "source", string(t.Source), "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) getOne(ctx context.Context, notFound error, query string, args ...interface{}) (*transaction.Transaction, error) {
	t, err := scanTransaction(r.querier.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		r.logger.Error("Failed to get transaction", "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.getOne(ctx, transaction.ErrTransactionNotFound(id), query, id)
}

func (r *TransactionRepository) GetByExternalID(ctx context.Context, source shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE source = $1 AND external_id = $2`
	return r.getOne(ctx, transaction.ErrExternalNotFound(source, externalID), query, source, externalID)
}

func (r *TransactionRepository) LockByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, transaction.ErrTransactionNotFound(id), query, id)
}

func (r *TransactionRepository) LockByExternalID(ctx context.Context, source shared.PaymentSource, externalID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE source = $1 AND external_id = $2 FOR UPDATE`
	return r.getOne(ctx, transaction.ErrExternalNotFound(source, externalID), query, source, externalID)
}

// Update writes the mutable columns if the stored version still matches and
// bumps the version on success.
func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $1, student_id = $2, contract_id = $3, payment_year = $4, payment_months = $5,
			comment = $6, cancel_reason = $7, paid_at = $8, cancelled_at = $9,
			version = version + 1, updated_at = $10
		WHERE id = $11 AND version = $12
	`

	result, err := r.querier.Exec(ctx, query,
		t.Status,
		t.StudentID,
		t.ContractID,
		t.PaymentYear,
		toInt32s(t.PaymentMonths),
		t.Comment,
		t.CancelReason,
		t.PaidAt,
		t.CancelledAt,
		t.UpdatedAt,
		t.ID,
		t.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update transaction", "id", t.ID, "error", err)
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ConcurrentModificationError{Entity: "transaction", ID: t.ID}
	}

	t.Version++
	return nil
}

func (r *TransactionRepository) ListByContract(ctx context.Context, contractID int64, statuses ...shared.TransactionStatus) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE contract_id = $1`
	args := []interface{}{contractID}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list contract transactions", "contract_id", contractID, "error", err)
		return nil, fmt.Errorf("failed to list contract transactions: %w", err)
	}
	return r.collect(rows)
}

func filterClause(filter transaction.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Source != nil {
		add("source = $%d", *filter.Source)
	}
	if filter.StudentID != nil {
		add("student_id = $%d", *filter.StudentID)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of transactions, newest first, with the unpaged total
func (r *TransactionRepository) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	where, args := filterClause(filter)

	var total int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	pageArgs := append(append([]interface{}{}, args...), limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)

	rows, err := r.querier.Query(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	txns, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListSettledBetween returns SUCCESS transactions of source paid in [from, to)
func (r *TransactionRepository) ListSettledBetween(ctx context.Context, source shared.PaymentSource, from, to time.Time) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE source = $1 AND status = $2 AND paid_at >= $3 AND paid_at < $4
		ORDER BY paid_at, id
	`

	rows, err := r.querier.Query(ctx, query, source, shared.TransactionStatusSuccess, from, to)
	if err != nil {
		r.logger.Error("Failed to list settled transactions", "source", string(source), "error", err)
		return nil, fmt.Errorf("failed to list settled transactions: %w", err)
	}
	return r.collect(rows)
}

// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a pgx.Tx so multi-row changes commit atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// ContractRepository implements the contract.Repository interface for PostgreSQL
type ContractRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

func NewContractRepository(logger *slog.Logger, db *persistence.PostgresDB) contract.Repository {
	return &ContractRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *ContractRepository) WithTx(tx pgx.Tx) contract.Repository {
	return &ContractRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const contractColumns = `id, contract_number, student_id, group_id, birth_year, sequence_number, monthly_fee, start_date, end_date, status, version, created_at, updated_at`

func scanContract(row pgx.Row) (*contract.Contract, error) {
	var c contract.Contract
	err := row.Scan(
		&c.ID,
		&c.Number,
		&c.StudentID,
		&c.GroupID,
		&c.BirthYear,
		&c.SequenceNumber,
		&c.MonthlyFee,
		&c.StartDate,
		&c.EndDate,
		&c.Status,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts an ACTIVE contract. A clash on the active number or sequence
// indexes surfaces as a concurrent modification so the caller can retry allocation.
func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	query := `
		INSERT INTO contracts (contract_number, student_id, group_id, birth_year, sequence_number, monthly_fee, start_date, end_date, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		c.Number,
		c.StudentID,
		c.GroupID,
		c.BirthYear,
		c.SequenceNumber,
		c.MonthlyFee,
		c.StartDate,
		c.EndDate,
		c.Status,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			r.logger.Warn("Contract number or sequence already taken", "contract_number", c.Number)
			return shared.ConcurrentModificationError{Entity: "contract", ID: c.ID}
		}
		r.logger.Error("Failed to create contract", "contract_number", c.Number, "error", err)
		return fmt.Errorf("failed to create contract: %w", err)
	}

	return nil
}

func (r *ContractRepository) getOne(ctx context.Context, query, key string, arg interface{}) (*contract.Contract, error) {
	c, err := scanContract(r.querier.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contract.ErrContractNotFound(key)
		}
		r.logger.Error("Failed to get contract", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	return r.getOne(ctx, query, strconv.FormatInt(id, 10), id)
}

// GetByNumber prefers the ACTIVE holder of a number over historical ones
func (r *ContractRepository) GetByNumber(ctx context.Context, number string) (*contract.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE contract_number = $1
		ORDER BY (status = 'ACTIVE') DESC, id DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, number, number)
}

// LockByNumber locks the ACTIVE contract carrying number
func (r *ContractRepository) LockByNumber(ctx context.Context, number string) (*contract.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE contract_number = $1 AND status = 'ACTIVE'
		FOR UPDATE
	`
	return r.getOne(ctx, query, number, number)
}

func (r *ContractRepository) LockByID(ctx context.Context, id int64) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, strconv.FormatInt(id, 10), id)
}

func (r *ContractRepository) ListActiveByStudent(ctx context.Context, studentID int64) ([]*contract.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE student_id = $1 AND status = $2
		ORDER BY id
	`

	rows, err := r.querier.Query(ctx, query, studentID, shared.ContractStatusActive)
	if err != nil {
		r.logger.Error("Failed to list contracts", "student_id", studentID, "error", err)
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over contracts: %w", err)
	}
	return contracts, nil
}

// UpdateStatus changes the status if version still matches, bumping it.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id int64, status shared.ContractStatus, version int) error {
	query := `
		UPDATE contracts
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`

	result, err := r.querier.Exec(ctx, query, status, id, version)
	if err != nil {
		r.logger.Error("Failed to update contract status", "id", id, "error", err)
		return fmt.Errorf("failed to update contract status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ConcurrentModificationError{Entity: "contract", ID: id}
	}
	return nil
}

func (r *ContractRepository) UsedSequences(ctx context.Context, scope contract.Scope) ([]int, error) {
	query := `
		SELECT sequence_number
		FROM contracts
		WHERE group_id = $1 AND birth_year = $2 AND status = 'ACTIVE' AND sequence_number IS NOT NULL
		ORDER BY sequence_number
	`

	rows, err := r.querier.Query(ctx, query, scope.GroupID, scope.BirthYear)
	if err != nil {
		r.logger.Error("Failed to read used sequences", "group_id", scope.GroupID, "birth_year", scope.BirthYear, "error", err)
		return nil, fmt.Errorf("failed to read used sequences: %w", err)
	}
	defer rows.Close()

	var used []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("failed to scan sequence: %w", err)
		}
		used = append(used, seq)
	}
	return used, rows.Err()
}

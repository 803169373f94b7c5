package contract

import (
	"context"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Repository defines contract persistence operations
type Repository interface {
	Create(ctx context.Context, contract *Contract) error
	GetByID(ctx context.Context, id int64) (*Contract, error)
	GetByNumber(ctx context.Context, number string) (*Contract, error)
	ListActiveByStudent(ctx context.Context, studentID int64) ([]*Contract, error)

	// LockByNumber and LockByID take a row lock held until the surrounding transaction ends
	LockByNumber(ctx context.Context, number string) (*Contract, error)
	LockByID(ctx context.Context, id int64) (*Contract, error)

	// UpdateStatus uses optimistic locking on the version column
	UpdateStatus(ctx context.Context, id int64, status shared.ContractStatus, version int) error

	// UsedSequences returns the sequence numbers held by ACTIVE contracts of the scope
	UsedSequences(ctx context.Context, scope Scope) ([]int, error)
	WithTx(tx pgx.Tx) Repository
}

func ErrContractNotFound(key string) error {
	return shared.NotFoundError{Entity: "contract", Key: key}
}

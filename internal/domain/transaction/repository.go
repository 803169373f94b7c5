package transaction

import (
	"context"
	"strconv"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Filter narrows transaction listings; nil fields are ignored
type Filter struct {
	From      *time.Time
	To        *time.Time
	Status    *shared.TransactionStatus
	Source    *shared.PaymentSource
	StudentID *int64
	Limit     int
	Offset    int
}

// Repository manages transaction persistence. Writes go through the settlement
// service only.
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id int64) (*Transaction, error)
	GetByExternalID(ctx context.Context, source shared.PaymentSource, externalID string) (*Transaction, error)

	// LockByID and LockByExternalID take a row lock held until the surrounding transaction ends
	LockByID(ctx context.Context, id int64) (*Transaction, error)
	LockByExternalID(ctx context.Context, source shared.PaymentSource, externalID string) (*Transaction, error)

	// Update persists status changes with an optimistic version check and bumps the version
	Update(ctx context.Context, txn *Transaction) error

	ListByContract(ctx context.Context, contractID int64, statuses ...shared.TransactionStatus) ([]*Transaction, error)
	List(ctx context.Context, filter Filter) ([]*Transaction, int64, error)
	ListSettledBetween(ctx context.Context, source shared.PaymentSource, from, to time.Time) ([]*Transaction, error)
	WithTx(tx pgx.Tx) Repository
}

func ErrTransactionNotFound(id int64) error {
	return shared.NotFoundError{Entity: "transaction", Key: strconv.FormatInt(id, 10)}
}

func ErrExternalNotFound(source shared.PaymentSource, externalID string) error {
	return shared.NotFoundError{Entity: "transaction", Key: string(source) + ":" + externalID}
}

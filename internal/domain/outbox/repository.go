package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Repository persists settlement outbox rows. Rows are written inside the settlement
// transaction and drained in creation order by the poller.
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	// PurgeProcessed deletes at most limit PROCESSED rows created before cutoff.
	// Pending and failed rows are never removed.
	PurgeProcessed(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

package group

import (
	"context"
	"strconv"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Group is a training group with a bounded number of places per birth-year cohort
type Group struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Capacity       int     `json:"capacity"`
	ContractPrefix *string `json:"contract_prefix,omitempty"`
}

// Prefix returns the group's contract number prefix or fallback when none is set.
func (g *Group) Prefix(fallback string) string {
	if g.ContractPrefix == nil || *g.ContractPrefix == "" {
		return fallback
	}
	return *g.ContractPrefix
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Group, error)
	WithTx(tx pgx.Tx) Repository
}

func ErrGroupNotFound(id int64) error {
	return shared.NotFoundError{Entity: "group", Key: strconv.FormatInt(id, 10)}
}

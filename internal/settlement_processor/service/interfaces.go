package service

import (
	"context"

	"github.com/academy-ledger/internal/domain/shared"
)

// ProjectionService records settlement events in the journal.
type ProjectionService interface {
	Project(ctx context.Context, event *shared.SettlementEvent) error
}

// EventValidator rejects events that can never be projected, however often they are retried
type EventValidator interface {
	Validate(event *shared.SettlementEvent) error
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/shared"
)

type JournalProjectionService struct {
	journalRepo journal.Repository
	logger      *slog.Logger
}

func NewJournalProjectionService(journalRepo journal.Repository, logger *slog.Logger) *JournalProjectionService {
	return &JournalProjectionService{
		journalRepo: journalRepo,
		logger:      logger,
	}
}

// Project appends the event to the journal. A redelivered event is a no-op.
func (s *JournalProjectionService) Project(ctx context.Context, event *shared.SettlementEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	record, err := journal.FromEvent(event)
	if err != nil {
		return err
	}

	inserted, err := s.journalRepo.Append(ctx, record)
	if err != nil {
		return fmt.Errorf("journal event %s of transaction %d: %w", event.EventID, event.TransactionID, err)
	}

	if !inserted {
		logger.Info("Settlement event already journaled",
			"event_id", event.EventID.String(),
			"transaction_id", event.TransactionID,
		)
		return nil
	}

	logger.Info("Journaled settlement event",
		"event_id", event.EventID.String(),
		"transaction_id", event.TransactionID,
		"type", event.Type,
		"status", event.Status,
	)
	return nil
}

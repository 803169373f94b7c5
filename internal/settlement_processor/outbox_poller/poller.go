package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academy-ledger/internal/config"
	"github.com/academy-ledger/internal/domain/outbox"
	"github.com/academy-ledger/internal/domain/shared"
)

const purgeInterval = time.Hour

// Poller relays pending outbox messages in creation order and purges published rows
// once they are older than the configured retention.
type Poller struct {
	outboxRepo       outbox.Repository
	relay            EventRelay
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	retention        time.Duration
	now              func() time.Time
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	relay EventRelay,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		relay:            relay,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		retention:        cfg.Retention,
		now:              time.Now,
	}
}

// Start polls until ctx is cancelled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
		"retention", p.retention.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var purge <-chan time.Time
	if p.retention > 0 {
		purgeTicker := time.NewTicker(purgeInterval)
		defer purgeTicker.Stop()
		purge = purgeTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		case <-purge:
			if err := p.purgeProcessed(ctx); err != nil {
				p.logger.Error("Failed to purge processed outbox messages", "error", err)
			}
		}
	}
}

// purgeProcessed deletes published rows past retention in batchSize chunks
func (p *Poller) purgeProcessed(ctx context.Context) error {
	cutoff := p.now().Add(-p.retention)
	var total int64
	for ctx.Err() == nil {
		purged, err := p.outboxRepo.PurgeProcessed(ctx, cutoff, p.batchSize)
		if err != nil {
			return err
		}
		total += purged
		if purged < int64(p.batchSize) {
			break
		}
	}
	if total > 0 {
		p.logger.Info("Purged processed outbox messages", "count", total, "cutoff", cutoff)
	}
	return ctx.Err()
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	// A transaction whose earlier event failed keeps its later events pending,
	// so consumers never see its transitions out of order.
	blocked := make(map[int64]struct{})

	for _, msg := range messages {
		if _, ok := blocked[msg.TransactionID]; ok {
			continue
		}

		err := p.relay.Relay(ctx, msg)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrPoisonMessage) {
			continue
		}

		blocked[msg.TransactionID] = struct{}{}
		p.logger.Error("Failed to relay outbox message",
			"outbox_id", msg.ID, "transaction_id", msg.TransactionID, "current_attempts", msg.Attempts, "error", err,
		)

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			p.logger.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
			continue
		}

		if msg.Attempts+1 >= p.maxRetryAttempts {
			p.logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
				"outbox_id", msg.ID, "transaction_id", msg.TransactionID, "attempts_made", msg.Attempts+1,
			)
			if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
				p.logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH", "outbox_id", msg.ID, "error", errUpdate)
			}
		}
	}
	return nil
}

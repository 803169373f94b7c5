package service

import (
	"context"
	"log/slog"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolProjectionService bounds the number of concurrent journal writes.
type WorkerPoolProjectionService struct {
	baseService ProjectionService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProjectionService(
	baseService ProjectionService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProjectionService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProjectionService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// Project runs the base projection on a pool worker and waits for its result.
func (s *WorkerPoolProjectionService) Project(ctx context.Context, event *shared.SettlementEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	result := make(chan error, 1)
	eventCopy := *event

	err := s.pool.Submit(func() {
		result <- s.baseService.Project(ctx, &eventCopy)
	})
	if err != nil {
		logger.Error("Failed to submit settlement event to worker pool",
			"event_id", event.EventID.String(),
			"transaction_id", event.TransactionID,
			"error", err,
		)
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown releases the pool; in-flight projections finish on their own.
func (s *WorkerPoolProjectionService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *WorkerPoolProjectionService) Running() int {
	return s.pool.Running()
}

func (s *WorkerPoolProjectionService) Capacity() int {
	return s.pool.Cap()
}

package components

import (
	"log/slog"

	"github.com/academy-ledger/internal/config"
	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/settlement_processor/service"
)

// CreateProjectionService builds the journal projection, pooled when the pool can be created.
func CreateProjectionService(
	journalRepo journal.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProjectionService {
	baseService := service.NewJournalProjectionService(journalRepo, logger)

	workerPoolService, err := service.NewWorkerPoolProjectionService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool projection service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}

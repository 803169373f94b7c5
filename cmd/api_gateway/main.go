package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/academy-ledger/internal/api_gateway"
	"github.com/academy-ledger/internal/api_gateway/gateway"
	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/config"
	"github.com/academy-ledger/internal/data/mongo"
	"github.com/academy-ledger/internal/data/postgres"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/logger"
	"github.com/academy-ledger/internal/platform/authz"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/spf13/cast"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("Starting API Gateway",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"timezone", cfg.Application.Location().String(),
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedis(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	clickServiceID, err := cast.ToInt64E(cfg.Gateways.Click.ServiceID)
	if err != nil && cfg.Gateways.Click.ServiceID != "" {
		log.Error("CLICK_SERVICE_ID must be numeric", "value", cfg.Gateways.Click.ServiceID)
		os.Exit(1)
	}

	// Repositories
	contractRepo := postgres.NewContractRepository(log, postgresDB)
	studentRepo := postgres.NewStudentRepository(log, postgresDB)
	groupRepo := postgres.NewGroupRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	waitingListRepo := postgres.NewWaitingListRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	gateLogRepo := mongo.NewGateLogRepository(log, mongoDB.Database())
	journalRepo := mongo.NewJournalRepository(log, mongoDB.Database())

	if err := mongoDB.EnsureIndexes(appCtx, gateLogRepo, journalRepo); err != nil {
		log.Error("Failed to ensure MongoDB indexes", "error", err)
		os.Exit(1)
	}

	clock := shared.SystemClock{Location: cfg.Application.Location()}
	locker := persistence.NewRedisScopeLocker(redisClient.Client(), &cfg.Allocator, log.With("component", "allocator"))

	// Services
	settlementService := service.NewSettlementService(log, postgresDB.Pool(), transactionRepo, contractRepo, studentRepo, outboxRepo, journalRepo, clock, cfg.Settlement.PendingHold)
	contractService := service.NewContractService(log, postgresDB.Pool(), locker, contractRepo, studentRepo, groupRepo, waitingListRepo, cfg.Allocator.DefaultPrefix)
	debtService := service.NewDebtService(log, studentRepo, contractRepo, transactionRepo, clock)
	gateService := service.NewGateService(log, studentRepo, debtService, gateLogRepo, clock)

	// Provider adapters
	click := gateway.NewClick(log.With("provider", "click"), gateway.ClickSettings{
		ServiceID: clickServiceID,
		SecretKey: cfg.Gateways.Click.SecretKey,
		Location:  cfg.Application.Location(),
	}, settlementService, contractService, contractRepo, clock)
	payme := gateway.NewPayme(log.With("provider", "payme"), gateway.PaymeSettings{
		Login: cfg.Gateways.Payme.Login,
		Key:   cfg.Gateways.Payme.Key,
	}, settlementService, contractRepo, clock)

	server, err := api_gateway.NewServer(log, cfg, api_gateway.Dependencies{
		Settlement: settlementService,
		Contracts:  contractService,
		Debt:       debtService,
		Gate:       gateService,
		Click:      click,
		Payme:      payme,
		Checker:    authz.NewChecker(authz.DefaultRoles()),
	})
	if err != nil {
		log.Error("Failed to initialize REST server", "error", err)
		os.Exit(1)
	}
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the stores they write to go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/academy-ledger/internal/config"
	"github.com/academy-ledger/internal/data/mongo"
	"github.com/academy-ledger/internal/data/postgres"
	"github.com/academy-ledger/internal/logger"
	"github.com/academy-ledger/internal/platform/messaging/consumers"
	"github.com/academy-ledger/internal/platform/messaging/producers"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/academy-ledger/internal/settlement_processor/components"
	"github.com/academy-ledger/internal/settlement_processor/consumer"
	"github.com/academy-ledger/internal/settlement_processor/outbox_poller"
	"github.com/academy-ledger/internal/settlement_processor/service"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("settlement_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Settlement Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
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

	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	journalRepo := mongo.NewJournalRepository(log, mongoDB.Database())
	if err := mongoDB.EnsureIndexes(appCtx, journalRepo); err != nil {
		log.Error("Failed to ensure journal indexes", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewSettlementEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement event producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)

	projectionService := components.CreateProjectionService(journalRepo, log, cfg)
	eventHandler := consumer.NewSettlementEventHandler(
		log,
		components.NewEventValidator(log),
		projectionService,
		deadLetters,
	)

	relay := outbox_poller.NewKafkaEventRelay(outboxRepo, eventProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, relay, log)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.SettlementTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, eventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if pooled, ok := projectionService.(*service.WorkerPoolProjectionService); ok {
		pooled.Shutdown()
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing settlement event producer", "error", err)
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Settlement Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Settlement Processor shutdown completed with errors")
	} else {
		log.Info("Settlement Processor shutdown completed successfully")
	}
}

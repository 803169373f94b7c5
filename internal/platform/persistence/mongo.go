package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/academy-ledger/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Indexed is implemented by document repositories that own collection indexes
type Indexed interface {
	EnsureIndexes(ctx context.Context) error
}

// MongoDB holds the document store for the settlement journal and gate logs.
// Journal records are the audit trail, so writes wait for a journaled majority.
type MongoDB struct {
	logger   *slog.Logger
	client   *mongo.Client
	database *mongo.Database
}

func mongoClientOptions(cfg *config.MongoDBConfig) *options.ClientOptions {
	journaled := true
	wc := writeconcern.Majority()
	wc.Journal = &journaled

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetWriteConcern(wc).
		SetReadConcern(readconcern.Majority()).
		SetRetryWrites(true)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	return opts
}

func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, mongoClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", cfg.Database)

	return &MongoDB{
		logger:   logger,
		client:   client,
		database: client.Database(cfg.Database),
	}, nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// EnsureIndexes creates the indexes of every repository that owns some. Repositories
// without indexes are skipped.
func (m *MongoDB) EnsureIndexes(ctx context.Context, repos ...any) error {
	for _, repo := range repos {
		ix, ok := repo.(Indexed)
		if !ok {
			continue
		}
		if err := ix.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	m.logger.Info("MongoDB indexes ensured", "database", m.database.Name())
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	m.logger.Info("Closed MongoDB connection")
	return nil
}

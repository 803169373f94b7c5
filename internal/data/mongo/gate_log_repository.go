// Package mongo holds the MongoDB repositories for append-only records.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/academy-ledger/internal/domain/gatelog"
)

const (
	// GateLogCollectionName is the name of the gate log collection in MongoDB
	GateLogCollectionName = "gate_logs"

	defaultPageSize = 50
)

// GateLogRepository implements the gatelog.Repository interface for MongoDB
type GateLogRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewGateLogRepository(logger *slog.Logger, db *mongo.Database) gatelog.Repository {
	return &GateLogRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the lookup indexes used by the admin listing
func (r *GateLogRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(GateLogCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "gate_timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "gate_timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create gate log indexes: %w", err)
	}
	return nil
}

func (r *GateLogRepository) Append(ctx context.Context, entry *gatelog.Entry) error {
	if _, err := r.db.Collection(GateLogCollectionName).InsertOne(ctx, entry); err != nil {
		r.logger.Error("Failed to write gate log",
			"gate_log_id", entry.ID,
			"error", err)
		return fmt.Errorf("failed to write gate log: %w", err)
	}
	return nil
}

func gateLogFilter(f gatelog.Filter) bson.M {
	filter := bson.M{}
	if f.From != nil || f.To != nil {
		window := bson.M{}
		if f.From != nil {
			window["$gte"] = *f.From
		}
		if f.To != nil {
			window["$lt"] = *f.To
		}
		filter["gate_timestamp"] = window
	}
	if f.StudentID != nil {
		filter["student_id"] = *f.StudentID
	}
	if f.Allowed != nil {
		filter["allowed"] = *f.Allowed
	}
	return filter
}

// List returns gate logs newest first
func (r *GateLogRepository) List(ctx context.Context, f gatelog.Filter) ([]*gatelog.Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "gate_timestamp", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(limit))

	cursor, err := r.db.Collection(GateLogCollectionName).Find(ctx, gateLogFilter(f), opts)
	if err != nil {
		r.logger.Error("Failed to list gate logs", "error", err)
		return nil, fmt.Errorf("failed to list gate logs: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []*gatelog.Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode gate logs", "error", err)
		return nil, fmt.Errorf("failed to decode gate logs: %w", err)
	}
	return entries, nil
}

func (r *GateLogRepository) Count(ctx context.Context, f gatelog.Filter) (int64, error) {
	count, err := r.db.Collection(GateLogCollectionName).CountDocuments(ctx, gateLogFilter(f))
	if err != nil {
		r.logger.Error("Failed to count gate logs", "error", err)
		return 0, fmt.Errorf("failed to count gate logs: %w", err)
	}
	return count, nil
}

package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/academy-ledger/internal/domain/journal"
)

const (
	// JournalCollectionName is the name of the settlement journal collection in MongoDB
	JournalCollectionName = "settlement_journal"
)

// JournalRepository implements the journal.Repository interface for MongoDB
type JournalRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewJournalRepository(logger *slog.Logger, db *mongo.Database) journal.Repository {
	return &JournalRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes makes event_id unique so replays collapse onto one record
func (r *JournalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(JournalCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create journal indexes: %w", err)
	}
	return nil
}

// Append upserts on event_id with $setOnInsert, so a redelivered event leaves
// the existing record untouched and reports inserted=false.
func (r *JournalRepository) Append(ctx context.Context, record *journal.Record) (bool, error) {
	filter := bson.M{"event_id": record.EventID}
	update := bson.M{"$setOnInsert": record}

	result, err := r.db.Collection(JournalCollectionName).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to append journal record",
			"event_id", record.EventID,
			"transaction_id", record.TransactionID,
			"error", err)
		return false, fmt.Errorf("failed to append journal record: %w", err)
	}
	return result.UpsertedCount > 0, nil
}

// ListByTransaction returns the journal of one transaction in event order
func (r *JournalRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]*journal.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "recorded_at", Value: 1}})

	cursor, err := r.db.Collection(JournalCollectionName).Find(ctx, bson.M{"transaction_id": transactionID}, opts)
	if err != nil {
		r.logger.Error("Failed to list journal records",
			"transaction_id", transactionID,
			"error", err)
		return nil, fmt.Errorf("failed to list journal records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*journal.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode journal records: %w", err)
	}
	return records, nil
}

package mongo

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/shared"
)

func TestJournalRepository_Append(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	record := &journal.Record{ID: "sjr_01", EventID: "6f1c7a52-1d8e-4d65-9a59-2a3c6f0f8e11", TransactionID: 42, Type: shared.EventTransactionSettled}

	mt.Run("first delivery inserts", func(mt *mtest.T) {
		repo := NewJournalRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "sjr_01"}}}},
		))

		inserted, err := repo.Append(ctx, record)
		require.NoError(mt, err)
		assert.True(mt, inserted)
	})

	mt.Run("redelivery is a no-op", func(mt *mtest.T) {
		repo := NewJournalRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		inserted, err := repo.Append(ctx, record)
		require.NoError(mt, err)
		assert.False(mt, inserted)
	})
}

func TestJournalRepository_ListByTransaction(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ordered records", func(mt *mtest.T) {
		repo := NewJournalRepository(slog.Default(), mt.DB)
		ns := mt.DB.Name() + "." + JournalCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "sjr_01"}, {Key: "transaction_id", Value: int64(42)}, {Key: "type", Value: "TRANSACTION_PREPARED"}},
			bson.D{{Key: "_id", Value: "sjr_02"}, {Key: "transaction_id", Value: int64(42)}, {Key: "type", Value: "TRANSACTION_SETTLED"}},
		))

		records, err := repo.ListByTransaction(context.Background(), 42)
		require.NoError(mt, err)
		require.Len(mt, records, 2)
		assert.Equal(mt, shared.EventTransactionSettled, records[1].Type)
	})
}

package docstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestRecordFilter(t *testing.T) {
	filter := recordFilter(store.RecordQuery{UserId: "user1", AmountContains: "1.5"})
	assert.Equal(t, "user1", filter["user_id"])
	assert.Equal(t, bson.M{"$ne": true}, filter["is_deleted"])
	assert.Equal(t, bson.M{"$regex": `1\.5`}, filter["amount"])

	filter = recordFilter(store.RecordQuery{UserId: "user1", IncludeDeleted: true})
	_, hasDeleted := filter["is_deleted"]
	_, hasAmount := filter["amount"]
	assert.False(t, hasDeleted)
	assert.False(t, hasAmount)
}

func TestRecordSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "date", Value: 1}}, recordSort(store.SortAsc))
	assert.Equal(t, bson.D{{Key: "date", Value: -1}}, recordSort(store.SortDesc))
	assert.Equal(t, bson.D{{Key: "date", Value: -1}}, recordSort(""))
}

func TestRecordDocConversion(t *testing.T) {
	rec := models.Record{
		Id: "rec_1", OperationId: "op_1", UserId: "user1",
		Amount: decimal.NewFromInt(5), UserBalance: decimal.NewFromInt(95),
		OperationResponse: "5", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	doc := toRecordDoc(rec)
	assert.Equal(t, "user1/rec_1", doc.Key)

	stored := fromRecordDoc(&doc)
	amount, _ := stored.GetAmount()
	date, _ := stored.GetDate()
	assert.Equal(t, "5", amount)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", date)

	// A document missing attributes stays readable.
	sparse := fromRecordDoc(&recordDoc{Key: "user1/rec_2", Id: models.StringPtr("rec_2")})
	_, ok := sparse.GetOperationId()
	assert.False(t, ok)
	_, ok = sparse.GetIsDeleted()
	assert.False(t, ok)
}

func TestParseBalance(t *testing.T) {
	assert.True(t, parseBalance("u", nil).IsZero())
	assert.True(t, parseBalance("u", models.StringPtr("garbage")).IsZero())
	assert.True(t, parseBalance("u", models.StringPtr("12.5")).Equal(decimal.RequireFromString("12.5")))
}

func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("LEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LEDGER_TEST_MONGO_URI not set, skipping mongo integration test")
	}

	ctx := context.Background()
	s, err := NewStore(ctx, models.MongoConfig{
		URI:         uri,
		Database:    fmt.Sprintf("ledger_test_%d", time.Now().UnixNano()),
		PingTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Skipf("skipping mongo integration test (database not available): %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		s.Close()
	})

	require.NoError(t, s.SetBalanceIfVersion(ctx, "user1", decimal.NewFromInt(100), 0))
	assert.ErrorIs(t, s.SetBalanceIfVersion(ctx, "user1", decimal.NewFromInt(1), 0), store.ErrConcurrentModification)

	balance, version, err := s.GetBalanceVersion(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(1), version)

	op := models.Operation{Id: "op_1", Type: "subtraction", Cost: decimal.NewFromInt(1)}
	require.NoError(t, s.PutOperation(ctx, op))
	assert.ErrorIs(t, s.PutOperation(ctx, op), store.ErrDuplicateId)

	require.NoError(t, s.PutRecord(ctx, models.Record{
		Id: "rec_1", OperationId: "op_1", UserId: "user1",
		Amount: decimal.NewFromInt(-3), UserBalance: decimal.NewFromInt(99),
		OperationResponse: "-3", Date: time.Now(),
	}))

	records, err := s.QueryRecordsByUser(ctx, store.RecordQuery{UserId: "user1", AmountContains: "-3"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = s.UpdateRecordDeleted(ctx, "rec_1", "user2")
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	updated, err := s.UpdateRecordDeleted(ctx, "rec_1", "user1")
	require.NoError(t, err)
	deleted, _ := updated.GetIsDeleted()
	assert.True(t, deleted)

	records, err = s.QueryRecordsByUser(ctx, store.RecordQuery{UserId: "user1"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

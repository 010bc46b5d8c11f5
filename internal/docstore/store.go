// Package docstore is the MongoDB balance and ledger store.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

// Collection name constants.
const (
	colBalances   = "ledger_balances"
	colOperations = "ledger_operations"
	colRecords    = "ledger_records"
)

var (
	_ store.Backend               = (*Store)(nil)
	_ store.VersionedBalanceStore = (*Store)(nil)
	_ store.BalanceLister         = (*Store)(nil)
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewStore(ctx context.Context, cfg models.MongoConfig) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri cannot be empty")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongo database cannot be empty")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongo: %w", err)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(cfg.Database)}
	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	zap.L().Info("Mongo store initialized", zap.String("database", cfg.Database))
	return s, nil
}

// Migrate creates the indexes record queries rely on.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_deleted", Value: 1}}},
	}
	if _, err := s.db.Collection(colRecords).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("docstore: migrate %s indexes: %w", colRecords, err)
	}
	return nil
}

func (s *Store) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		zap.L().Warn("Failed to disconnect from mongo", zap.Error(err))
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	balance, _, err := s.GetBalanceVersion(ctx, userId)
	return balance, err
}

func (s *Store) GetBalanceVersion(ctx context.Context, userId string) (decimal.Decimal, int64, error) {
	var doc balanceDoc
	err := s.db.Collection(colBalances).FindOne(ctx, bson.M{"_id": userId}).Decode(&doc)
	if isNoDocuments(err) {
		return decimal.Zero, 0, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return decimal.Zero, 0, fmt.Errorf("docstore: get balance: %w", err)
	}
	return parseBalance(userId, doc.Balance), doc.Version, nil
}

func (s *Store) SetBalance(ctx context.Context, userId string, balance decimal.Decimal) error {
	_, err := s.db.Collection(colBalances).UpdateOne(ctx,
		bson.M{"_id": userId},
		bson.M{"$set": bson.M{"balance": balance.String()}, "$inc": bson.M{"version": 1}},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		zap.L().Error("Failed to set balance", zap.String("user_id", userId), zap.Error(err))
		return fmt.Errorf("docstore: set balance: %w", err)
	}
	return nil
}

func (s *Store) SetBalanceIfVersion(ctx context.Context, userId string, balance decimal.Decimal, version int64) error {
	coll := s.db.Collection(colBalances)

	if version == 0 {
		_, err := coll.InsertOne(ctx, balanceDoc{UserId: userId, Balance: models.StringPtr(balance.String()), Version: 1})
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("balance for %s already exists: %w", userId, store.ErrConcurrentModification)
		}
		if err != nil {
			return fmt.Errorf("docstore: set balance: %w", err)
		}
		return nil
	}

	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": userId, "version": version},
		bson.M{"$set": bson.M{"balance": balance.String()}, "$inc": bson.M{"version": 1}})
	if err != nil {
		return fmt.Errorf("docstore: set balance: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("balance for %s moved past version %d: %w", userId, version, store.ErrConcurrentModification)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context) ([]models.UserBalance, error) {
	cursor, err := s.db.Collection(colBalances).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("docstore: list balances: %w", err)
	}

	var docs []balanceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("docstore: decode balances: %w", err)
	}

	balances := make([]models.UserBalance, len(docs))
	for i, doc := range docs {
		balances[i] = models.UserBalance{UserId: doc.UserId, Balance: parseBalance(doc.UserId, doc.Balance)}
	}
	return balances, nil
}

func (s *Store) PutOperation(ctx context.Context, op models.Operation) error {
	_, err := s.db.Collection(colOperations).InsertOne(ctx, toOperationDoc(op))
	if err != nil {
		zap.L().Error("Failed to insert operation", zap.String("id", op.Id), zap.Error(err))
		return wrapInsertError("operation", op.Id, err)
	}
	return nil
}

func (s *Store) PutRecord(ctx context.Context, rec models.Record) error {
	_, err := s.db.Collection(colRecords).InsertOne(ctx, toRecordDoc(rec))
	if err != nil {
		zap.L().Error("Failed to insert record", zap.String("id", rec.Id), zap.Error(err))
		return wrapInsertError("record", rec.Id, err)
	}
	return nil
}

func (s *Store) GetOperationById(ctx context.Context, id string) (*models.StoredOperation, error) {
	var doc operationDoc
	err := s.db.Collection(colOperations).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to get operation", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("docstore: get operation: %w", err)
	}
	return fromOperationDoc(&doc), nil
}

func (s *Store) QueryRecordsByUser(ctx context.Context, q store.RecordQuery) ([]models.StoredRecord, error) {
	cursor, err := s.db.Collection(colRecords).Find(ctx, recordFilter(q),
		options.Find().SetSort(recordSort(q.SortHint)))
	if err != nil {
		zap.L().Error("Failed to query records", zap.String("user_id", q.UserId), zap.Error(err))
		return nil, fmt.Errorf("docstore: query records: %w", err)
	}

	var docs []recordDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("docstore: decode records: %w", err)
	}

	records := make([]models.StoredRecord, len(docs))
	for i := range docs {
		records[i] = *fromRecordDoc(&docs[i])
	}
	return records, nil
}

func (s *Store) UpdateRecordDeleted(ctx context.Context, id, userId string) (*models.StoredRecord, error) {
	var doc recordDoc
	err := s.db.Collection(colRecords).FindOneAndUpdate(ctx,
		bson.M{"_id": recordKey(id, userId), "id": id, "user_id": userId},
		bson.M{"$set": bson.M{"is_deleted": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if isNoDocuments(err) {
		return nil, fmt.Errorf("record %s for user %s: %w", id, userId, store.ErrConditionFailed)
	}
	if err != nil {
		zap.L().Error("Failed to soft delete record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("docstore: soft delete record: %w", err)
	}
	return fromRecordDoc(&doc), nil
}

func recordFilter(q store.RecordQuery) bson.M {
	filter := bson.M{"user_id": q.UserId}
	if !q.IncludeDeleted {
		filter["is_deleted"] = bson.M{"$ne": true}
	}
	if q.AmountContains != "" {
		filter["amount"] = bson.M{"$regex": regexp.QuoteMeta(q.AmountContains)}
	}
	return filter
}

func recordSort(order store.SortOrder) bson.D {
	if order == store.SortAsc {
		return bson.D{{Key: "date", Value: 1}}
	}
	return bson.D{{Key: "date", Value: -1}}
}

func parseBalance(userId string, raw *string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	balance, err := decimal.NewFromString(*raw)
	if err != nil {
		zap.L().Warn("Unparsable balance, treating as zero",
			zap.String("user_id", userId),
			zap.String("balance_str", *raw))
		return decimal.Zero
	}
	return balance
}

func wrapInsertError(kind, id string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrDuplicateId)
	}
	return fmt.Errorf("docstore: insert %s: %w", kind, err)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

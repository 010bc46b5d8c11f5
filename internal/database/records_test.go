package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func putTestRecord(t *testing.T, service *Service, id, userId, amount string, date time.Time) {
	t.Helper()
	rec := models.Record{
		Id:                id,
		OperationId:       "op_" + id,
		UserId:            userId,
		Amount:            decimal.RequireFromString(amount),
		UserBalance:       decimal.NewFromInt(50),
		OperationResponse: amount,
		Date:              date,
	}
	if err := service.PutRecord(context.Background(), rec); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
}

func TestPutAndGetOperation(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	op := models.Operation{Id: "op_1", Type: "addition", Cost: decimal.NewFromInt(1)}
	if err := service.PutOperation(ctx, op); err != nil {
		t.Fatalf("PutOperation failed: %v", err)
	}

	stored, err := service.GetOperationById(ctx, "op_1")
	if err != nil {
		t.Fatalf("GetOperationById failed: %v", err)
	}
	if opType, ok := stored.GetType(); !ok || opType != "addition" {
		t.Errorf("Expected type addition, got %q", opType)
	}
	if cost, ok := stored.GetCost(); !ok || !cost.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected cost 1, got %s", cost)
	}

	missing, err := service.GetOperationById(ctx, "op_missing")
	if err != nil {
		t.Fatalf("Unexpected error for missing operation: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing operation, got %+v", missing)
	}
}

func TestQueryRecordsByUser(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	putTestRecord(t, service, "rec_1", "user1", "5", base)
	putTestRecord(t, service, "rec_2", "user1", "15", base.Add(time.Minute))
	putTestRecord(t, service, "rec_3", "user1", "7", base.Add(2*time.Minute))
	putTestRecord(t, service, "rec_4", "user2", "5", base)

	records, err := service.QueryRecordsByUser(ctx, store.RecordQuery{UserId: "user1", SortHint: store.SortDesc})
	if err != nil {
		t.Fatalf("QueryRecordsByUser failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if id, _ := records[0].GetId(); id != "rec_3" {
		t.Errorf("Expected newest record first, got %s", id)
	}

	// Substring match on the stored amount: "5" matches "5" and "15"
	records, err = service.QueryRecordsByUser(ctx, store.RecordQuery{UserId: "user1", AmountContains: "5", SortHint: store.SortAsc})
	if err != nil {
		t.Fatalf("QueryRecordsByUser failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if id, _ := records[0].GetId(); id != "rec_1" {
		t.Errorf("Expected oldest record first, got %s", id)
	}
}

func TestUpdateRecordDeleted(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	putTestRecord(t, service, "rec_1", "user1", "5", time.Now())

	// Wrong owner
	_, err := service.UpdateRecordDeleted(ctx, "rec_1", "user2")
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("Expected ErrConditionFailed, got %v", err)
	}

	updated, err := service.UpdateRecordDeleted(ctx, "rec_1", "user1")
	if err != nil {
		t.Fatalf("UpdateRecordDeleted failed: %v", err)
	}
	if deleted, ok := updated.GetIsDeleted(); !ok || !deleted {
		t.Errorf("Expected is_deleted true, got %v", deleted)
	}

	records, _ := service.QueryRecordsByUser(ctx, store.RecordQuery{UserId: "user1"})
	if len(records) != 0 {
		t.Errorf("Expected deleted record to be hidden, got %d records", len(records))
	}

	records, _ = service.QueryRecordsByUser(ctx, store.RecordQuery{UserId: "user1", IncludeDeleted: true})
	if len(records) != 1 {
		t.Errorf("Expected deleted record with IncludeDeleted, got %d records", len(records))
	}
}

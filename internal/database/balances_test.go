package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"metered-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	service, err := NewServiceFromDB(db)
	if err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func TestGetBalance_NoRowIsZero(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	balance, version, err := service.GetBalanceVersion(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", balance)
	}
	if version != 0 {
		t.Errorf("Expected version 0, got %d", version)
	}
}

func TestSetBalance_UpsertBumpsVersion(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := service.SetBalance(ctx, "user1", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("SetBalance failed: %v", err)
	}
	if err := service.SetBalance(ctx, "user1", decimal.NewFromInt(95)); err != nil {
		t.Fatalf("SetBalance failed: %v", err)
	}

	balance, version, err := service.GetBalanceVersion(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalanceVersion failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(95)) {
		t.Errorf("Expected balance 95, got %s", balance)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
}

func TestGetBalance_UnparsableIsZero(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := service.db.Exec("INSERT INTO balances (user_id, balance) VALUES (?, ?)", "user1", "not-a-number"); err != nil {
		t.Fatalf("Failed to insert balance: %v", err)
	}

	balance, err := service.GetBalance(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", balance)
	}
}

func TestSetBalanceIfVersion(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// Version 0 creates the row
	if err := service.SetBalanceIfVersion(ctx, "user1", decimal.NewFromInt(10), 0); err != nil {
		t.Fatalf("Initial conditional write failed: %v", err)
	}

	// A second create at version 0 must conflict
	err := service.SetBalanceIfVersion(ctx, "user1", decimal.NewFromInt(20), 0)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	if err := service.SetBalanceIfVersion(ctx, "user1", decimal.NewFromInt(7), 1); err != nil {
		t.Fatalf("Conditional update failed: %v", err)
	}

	// Stale version
	err = service.SetBalanceIfVersion(ctx, "user1", decimal.NewFromInt(3), 1)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	balance, _ := service.GetBalance(ctx, "user1")
	if !balance.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected balance 7, got %s", balance)
	}
}

func TestListBalances(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	service.SetBalance(ctx, "bob", decimal.NewFromInt(5))
	service.SetBalance(ctx, "alice", decimal.RequireFromString("12.5"))

	balances, err := service.ListBalances(ctx)
	if err != nil {
		t.Fatalf("ListBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 balances, got %d", len(balances))
	}
	if balances[0].UserId != "alice" || !balances[0].Balance.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Unexpected first balance: %+v", balances[0])
	}
	if balances[1].UserId != "bob" {
		t.Errorf("Expected bob second, got %s", balances[1].UserId)
	}
}

package store

import (
	"context"
	"errors"

	"metered-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrConcurrentModification = errors.New("concurrent modification detected")
	// ErrConditionFailed is returned when a conditional update matched no row,
	// e.g. a soft delete whose (id, user_id) pair does not exist.
	ErrConditionFailed = errors.New("conditional update failed")
	// ErrDuplicateId is returned when an append reuses an existing id.
	ErrDuplicateId = errors.New("duplicate id")
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// RecordQuery selects a user's records. SortHint only affects scan order;
// callers must not rely on it for final ordering.
type RecordQuery struct {
	UserId         string
	AmountContains string
	SortHint       SortOrder
	IncludeDeleted bool
}

// BalanceStore holds one numeric balance per user.
type BalanceStore interface {
	// GetBalance returns zero when the user has no balance or it cannot be parsed.
	GetBalance(ctx context.Context, userId string) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userId string, balance decimal.Decimal) error
}

// VersionedBalanceStore is implemented by backends that can make the balance
// write conditional on what was read.
type VersionedBalanceStore interface {
	BalanceStore
	// GetBalanceVersion returns version 0 when the user has no balance row.
	GetBalanceVersion(ctx context.Context, userId string) (decimal.Decimal, int64, error)
	// SetBalanceIfVersion returns ErrConcurrentModification when the stored
	// version no longer equals version.
	SetBalanceIfVersion(ctx context.Context, userId string, balance decimal.Decimal, version int64) error
}

// LedgerStore is the append-only store for operations and records.
type LedgerStore interface {
	PutOperation(ctx context.Context, op models.Operation) error
	PutRecord(ctx context.Context, rec models.Record) error
	// GetOperationById returns nil, nil when no operation has that id.
	GetOperationById(ctx context.Context, id string) (*models.StoredOperation, error)
	QueryRecordsByUser(ctx context.Context, q RecordQuery) ([]models.StoredRecord, error)
	// UpdateRecordDeleted flips is_deleted on the record matching (id, userId)
	// and returns the updated attributes. ErrConditionFailed when nothing matched.
	UpdateRecordDeleted(ctx context.Context, id, userId string) (*models.StoredRecord, error)
}

// BalanceLister is implemented by backends that can enumerate stored balances.
type BalanceLister interface {
	ListBalances(ctx context.Context) ([]models.UserBalance, error)
}

// Backend bundles both stores behind one lifecycle.
type Backend interface {
	BalanceStore
	LedgerStore
	Close()
}

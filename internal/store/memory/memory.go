// Package memory provides an in-memory store backend for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

var (
	_ store.Backend               = (*Memory)(nil)
	_ store.VersionedBalanceStore = (*Memory)(nil)
)

type balanceEntry struct {
	balance decimal.Decimal
	version int64
}

type Memory struct {
	mu         sync.RWMutex
	balances   map[string]balanceEntry
	operations map[string]models.Operation
	records    []models.Record
}

func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[string]balanceEntry),
		operations: make(map[string]models.Operation),
	}
}

func (m *Memory) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	balance, _, err := m.GetBalanceVersion(ctx, userId)
	return balance, err
}

func (m *Memory) GetBalanceVersion(_ context.Context, userId string) (decimal.Decimal, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.balances[userId]
	if !ok {
		return decimal.Zero, 0, nil
	}
	return entry.balance, entry.version, nil
}

func (m *Memory) SetBalance(_ context.Context, userId string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.balances[userId]
	m.balances[userId] = balanceEntry{balance: balance, version: entry.version + 1}
	return nil
}

func (m *Memory) SetBalanceIfVersion(_ context.Context, userId string, balance decimal.Decimal, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.balances[userId]
	if entry.version != version {
		return fmt.Errorf("balance for %s at version %d, expected %d: %w", userId, entry.version, version, store.ErrConcurrentModification)
	}
	m.balances[userId] = balanceEntry{balance: balance, version: version + 1}
	return nil
}

func (m *Memory) PutOperation(_ context.Context, op models.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.operations[op.Id]; exists {
		return fmt.Errorf("operation %s: %w", op.Id, store.ErrDuplicateId)
	}
	m.operations[op.Id] = op
	return nil
}

func (m *Memory) PutRecord(_ context.Context, rec models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.Id == rec.Id && existing.UserId == rec.UserId {
			return fmt.Errorf("record %s: %w", rec.Id, store.ErrDuplicateId)
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) GetOperationById(_ context.Context, id string) (*models.StoredOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, ok := m.operations[id]
	if !ok {
		return nil, nil
	}
	return models.NewStoredOperation(op), nil
}

func (m *Memory) QueryRecordsByUser(_ context.Context, q store.RecordQuery) ([]models.StoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.Record
	for _, rec := range m.records {
		if rec.UserId != q.UserId {
			continue
		}
		if rec.IsDeleted && !q.IncludeDeleted {
			continue
		}
		if q.AmountContains != "" && !strings.Contains(rec.Amount.String(), q.AmountContains) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if q.SortHint == store.SortAsc {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].Date.After(matched[j].Date)
	})

	result := make([]models.StoredRecord, len(matched))
	for i, rec := range matched {
		result[i] = *models.NewStoredRecord(rec)
	}
	return result, nil
}

func (m *Memory) UpdateRecordDeleted(_ context.Context, id, userId string) (*models.StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].Id == id && m.records[i].UserId == userId {
			m.records[i].IsDeleted = true
			return models.NewStoredRecord(m.records[i]), nil
		}
	}
	return nil, fmt.Errorf("record %s for user %s: %w", id, userId, store.ErrConditionFailed)
}

// ListBalances returns every user balance, ordered by user id.
func (m *Memory) ListBalances(_ context.Context) ([]models.UserBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balances := make([]models.UserBalance, 0, len(m.balances))
	for userId, entry := range m.balances {
		balances = append(balances, models.UserBalance{UserId: userId, Balance: entry.balance})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].UserId < balances[j].UserId })
	return balances, nil
}

func (m *Memory) Close() {}

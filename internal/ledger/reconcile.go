package ledger

import (
	"context"

	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reconciliation compares the stored balance with the starting balance minus
// the cost of every operation the user's records point at.
type Reconciliation struct {
	UserId          string
	StartingBalance decimal.Decimal
	TotalCost       decimal.Decimal
	Expected        decimal.Decimal
	Actual          decimal.Decimal
	Records         int
	// Unpriced counts records whose operation or cost could not be resolved.
	Unpriced int
}

func (r *Reconciliation) Balanced() bool {
	return r.Unpriced == 0 && r.Expected.Equal(r.Actual)
}

func (r *Reconciliation) Difference() decimal.Decimal {
	return r.Actual.Sub(r.Expected)
}

// ReconcileBalance surfaces partial commits after the fact. Soft-deleted
// records still count: deleting a record never refunds its cost.
func (s *Service) ReconcileBalance(ctx context.Context, userId string, startingBalance decimal.Decimal) (*Reconciliation, error) {
	if userId == "" {
		return nil, newValidationError("user_id", "is required")
	}

	records, err := s.ledger.QueryRecordsByUser(ctx, store.RecordQuery{
		UserId:         userId,
		SortHint:       store.SortAsc,
		IncludeDeleted: true,
	})
	if err != nil {
		return nil, newStoreError("query records", err)
	}

	result := &Reconciliation{
		UserId:          userId,
		StartingBalance: startingBalance,
		TotalCost:       decimal.Zero,
		Records:         len(records),
	}

	for i := range records {
		operationId, ok := records[i].GetOperationId()
		if !ok {
			result.Unpriced++
			continue
		}
		op, err := s.ledger.GetOperationById(ctx, operationId)
		if err != nil {
			return nil, newStoreError("get operation", err)
		}
		cost, ok := op.GetCost()
		if !ok {
			result.Unpriced++
			continue
		}
		result.TotalCost = result.TotalCost.Add(cost)
	}

	result.Expected = startingBalance.Sub(result.TotalCost)

	actual, err := s.balances.GetBalance(ctx, userId)
	if err != nil {
		return nil, newStoreError("get balance", err)
	}
	result.Actual = actual

	if !result.Balanced() {
		zap.L().Warn("Balance reconciliation mismatch",
			zap.String("user_id", userId),
			zap.String("expected", result.Expected.String()),
			zap.String("actual", result.Actual.String()),
			zap.Int("records", result.Records),
			zap.Int("unpriced", result.Unpriced))
	} else {
		zap.L().Info("Balance reconciled",
			zap.String("user_id", userId),
			zap.String("balance", actual.String()),
			zap.Int("records", result.Records))
	}

	return result, nil
}

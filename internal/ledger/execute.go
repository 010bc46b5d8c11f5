package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SideEffect performs the priced operation. It runs only after the balance
// check passed and at most once per execution.
type SideEffect func(ctx context.Context, operands []float64) (Outcome, error)

// Outcome is what a side effect produced.
type Outcome struct {
	// Result is placed verbatim in the success envelope.
	Result any
	// Response is stored as the record's operation_response.
	Response string
	// Numeric outcomes record their own value as the amount; others record the cost.
	Numeric bool
	Number  float64
}

func NumericOutcome(v float64) Outcome {
	return Outcome{Result: v, Response: models.FormatNumber(v), Numeric: true, Number: v}
}

func TextOutcome(s string) Outcome {
	return Outcome{Result: s, Response: s}
}

type ExecuteParams struct {
	UserId        string
	OperationType string
	Operands      []float64
	SideEffect    SideEffect
}

// Execute prices the operation, checks the balance, runs the side effect,
// debits the balance and appends the operation and record. Executions for
// the same user are serialized in process; stores that support versioned
// balances also reject writes that raced with another process.
func (s *Service) Execute(ctx context.Context, p ExecuteParams) (*models.OperationResult, error) {
	if p.UserId == "" {
		return nil, newValidationError("user_id", "is required")
	}
	if p.OperationType == "" {
		return nil, newValidationError("operation_type", "is required")
	}
	if p.SideEffect == nil {
		return nil, newValidationError("side_effect", "is required")
	}

	timer := prometheus.NewTimer(executeDuration.WithLabelValues(p.OperationType))
	defer timer.ObserveDuration()

	cost := s.prices.Cost(p.OperationType)

	unlock := s.locks.lock(p.UserId)
	defer unlock()

	balance, version, versioned, err := s.readBalance(ctx, p.UserId)
	if err != nil {
		operationsTotal.WithLabelValues(p.OperationType, outcomeStoreFailed).Inc()
		zap.L().Error("Failed to read balance",
			zap.String("user_id", p.UserId),
			zap.String("operation_type", p.OperationType),
			zap.Error(err))
		return nil, newStoreError("read balance", err)
	}

	if balance.LessThan(cost) {
		operationsTotal.WithLabelValues(p.OperationType, outcomeInsufficientBalance).Inc()
		zap.L().Info("Insufficient balance",
			zap.String("user_id", p.UserId),
			zap.String("operation_type", p.OperationType),
			zap.String("required", cost.String()),
			zap.String("current", balance.String()))
		return nil, &InsufficientBalanceError{UserId: p.UserId, Required: cost, Current: balance}
	}

	outcome, err := p.SideEffect(ctx, p.Operands)
	if err != nil {
		operationsTotal.WithLabelValues(p.OperationType, outcomeExecutionFailed).Inc()
		zap.L().Warn("Operation side effect failed",
			zap.String("user_id", p.UserId),
			zap.String("operation_type", p.OperationType),
			zap.Error(err))
		return nil, &ExecutionError{OperationType: p.OperationType, Err: err}
	}
	if outcome.Numeric && (math.IsNaN(outcome.Number) || math.IsInf(outcome.Number, 0)) {
		operationsTotal.WithLabelValues(p.OperationType, outcomeExecutionFailed).Inc()
		zap.L().Warn("Operation produced a non-finite result",
			zap.String("user_id", p.UserId),
			zap.String("operation_type", p.OperationType),
			zap.Float64("result", outcome.Number))
		return nil, &ExecutionError{OperationType: p.OperationType, Err: fmt.Errorf("non-finite result %v", outcome.Number)}
	}

	now := s.ids.next()
	newBalance := balance.Sub(cost)

	amount := cost
	if outcome.Numeric {
		amount = decimal.NewFromFloat(outcome.Number)
	}

	op := models.Operation{
		Id:   newOperationId(now, p.UserId),
		Type: p.OperationType,
		Cost: cost,
	}
	rec := models.Record{
		Id:                newRecordId(now, p.UserId),
		OperationId:       op.Id,
		UserId:            p.UserId,
		Amount:            amount,
		UserBalance:       newBalance,
		OperationResponse: outcome.Response,
		IsDeleted:         false,
		Date:              now,
	}

	if err := s.commit(ctx, p.UserId, newBalance, version, versioned, op, rec); err != nil {
		var partial *PartialCommitError
		if errors.As(err, &partial) && errors.Is(err, store.ErrConcurrentModification) && partial.nothingPersisted() {
			operationsTotal.WithLabelValues(p.OperationType, outcomeConflict).Inc()
		} else {
			operationsTotal.WithLabelValues(p.OperationType, outcomePartialCommit).Inc()
		}
		return nil, err
	}

	operationsTotal.WithLabelValues(p.OperationType, outcomeSuccess).Inc()
	zap.L().Info("Operation executed",
		zap.String("user_id", p.UserId),
		zap.String("operation_id", op.Id),
		zap.String("operation_type", p.OperationType),
		zap.String("cost", cost.String()),
		zap.String("remaining_balance", newBalance.String()))

	return &models.OperationResult{
		OperationId:      op.Id,
		Result:           outcome.Result,
		Cost:             cost,
		RemainingBalance: newBalance,
	}, nil
}

func (s *Service) readBalance(ctx context.Context, userId string) (decimal.Decimal, int64, bool, error) {
	if vs, ok := s.balances.(store.VersionedBalanceStore); ok {
		balance, version, err := vs.GetBalanceVersion(ctx, userId)
		return balance, version, true, err
	}
	balance, err := s.balances.GetBalance(ctx, userId)
	return balance, 0, false, err
}

func (s *Service) writeBalance(ctx context.Context, userId string, balance decimal.Decimal, version int64, versioned bool) error {
	if versioned {
		return s.balances.(store.VersionedBalanceStore).SetBalanceIfVersion(ctx, userId, balance, version)
	}
	return s.balances.SetBalance(ctx, userId, balance)
}

// commit issues the balance write and both appends together and reports
// exactly which of them landed.
func (s *Service) commit(ctx context.Context, userId string, newBalance decimal.Decimal, version int64, versioned bool, op models.Operation, rec models.Record) error {
	var (
		wg                        sync.WaitGroup
		balanceErr, opErr, recErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		balanceErr = s.writeBalance(ctx, userId, newBalance, version, versioned)
	}()
	go func() {
		defer wg.Done()
		opErr = s.ledger.PutOperation(ctx, op)
	}()
	go func() {
		defer wg.Done()
		recErr = s.ledger.PutRecord(ctx, rec)
	}()
	wg.Wait()

	if balanceErr == nil && opErr == nil && recErr == nil {
		return nil
	}

	partial := &PartialCommitError{
		UserId:            userId,
		OperationId:       op.Id,
		RecordId:          rec.Id,
		BalanceWritten:    balanceErr == nil,
		OperationAppended: opErr == nil,
		RecordAppended:    recErr == nil,
		Err:               errors.Join(balanceErr, opErr, recErr),
	}

	// The side effect already ran. Nothing compensates, so this is flagged for reconciliation.
	partialCommitsTotal.Inc()
	zap.L().Error("Partial commit: side effect executed but persistence failed",
		zap.String("user_id", userId),
		zap.String("operation_id", op.Id),
		zap.String("record_id", rec.Id),
		zap.String("operation_type", op.Type),
		zap.String("cost", op.Cost.String()),
		zap.String("intended_balance", newBalance.String()),
		zap.Bool("balance_written", partial.BalanceWritten),
		zap.Bool("operation_appended", partial.OperationAppended),
		zap.Bool("record_appended", partial.RecordAppended),
		zap.Bool("nothing_persisted", partial.nothingPersisted()),
		zap.Error(partial.Err))

	return partial
}

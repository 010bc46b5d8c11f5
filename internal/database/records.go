package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func (s *Service) PutOperation(ctx context.Context, op models.Operation) error {
	zap.L().Debug("Storing operation", zap.String("id", op.Id), zap.String("type", op.Type))

	if _, err := s.db.ExecContext(ctx, queryInsertOperation, op.Id, op.Type, op.Cost.String()); err != nil {
		zap.L().Error("Failed to insert operation", zap.String("id", op.Id), zap.Error(err))
		if isUniqueViolation(err) {
			return fmt.Errorf("operation %s: %w", op.Id, store.ErrDuplicateId)
		}
		return fmt.Errorf("unable to insert operation: %w", err)
	}
	return nil
}

func (s *Service) PutRecord(ctx context.Context, rec models.Record) error {
	zap.L().Debug("Storing record",
		zap.String("id", rec.Id),
		zap.String("user_id", rec.UserId),
		zap.String("operation_id", rec.OperationId))

	_, err := s.db.ExecContext(ctx, queryInsertRecord,
		rec.Id, rec.OperationId, rec.UserId, rec.Amount.String(), rec.UserBalance.String(),
		rec.OperationResponse, rec.IsDeleted, models.FormatTimestamp(rec.Date))
	if err != nil {
		zap.L().Error("Failed to insert record", zap.String("id", rec.Id), zap.Error(err))
		if isUniqueViolation(err) {
			return fmt.Errorf("record %s: %w", rec.Id, store.ErrDuplicateId)
		}
		return fmt.Errorf("unable to insert record: %w", err)
	}
	return nil
}

func (s *Service) GetOperationById(ctx context.Context, id string) (*models.StoredOperation, error) {
	var opId, opType, cost sql.NullString
	err := s.db.QueryRowContext(ctx, queryGetOperationById, id).Scan(&opId, &opType, &cost)
	if errors.Is(err, sql.ErrNoRows) {
		zap.L().Debug("No operation found", zap.String("id", id))
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to query operation", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to query operation: %w", err)
	}

	return &models.StoredOperation{
		Id:   nullString(opId),
		Type: nullString(opType),
		Cost: nullString(cost),
	}, nil
}

func (s *Service) QueryRecordsByUser(ctx context.Context, q store.RecordQuery) ([]models.StoredRecord, error) {
	zap.L().Debug("Querying records",
		zap.String("user_id", q.UserId),
		zap.String("amount_contains", q.AmountContains),
		zap.String("sort_hint", string(q.SortHint)))

	query := queryRecordsByUserBase
	args := []any{q.UserId}
	if !q.IncludeDeleted {
		query += queryRecordsNotDeleted
	}
	if q.AmountContains != "" {
		query += queryRecordsAmountContains
		args = append(args, q.AmountContains)
	}
	if q.SortHint == store.SortAsc {
		query += queryRecordsOrderAsc
	} else {
		query += queryRecordsOrderDesc
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		zap.L().Error("Failed to query records", zap.String("user_id", q.UserId), zap.Error(err))
		return nil, fmt.Errorf("unable to query records: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var records []models.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			zap.L().Error("Failed to scan record row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan record row: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during record row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}

	zap.L().Debug("Retrieved records", zap.String("user_id", q.UserId), zap.Int("count", len(records)))
	return records, nil
}

func (s *Service) UpdateRecordDeleted(ctx context.Context, id, userId string) (*models.StoredRecord, error) {
	zap.L().Info("Soft deleting record", zap.String("id", id), zap.String("user_id", userId))

	rec, err := scanRecord(s.db.QueryRowContext(ctx, querySoftDeleteRecord, id, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s for user %s: %w", id, userId, store.ErrConditionFailed)
	}
	if err != nil {
		zap.L().Error("Failed to soft delete record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to soft delete record: %w", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.StoredRecord, error) {
	var id, operationId, userId, amount, userBalance, response, date sql.NullString
	var isDeleted sql.NullBool
	if err := row.Scan(&id, &operationId, &userId, &amount, &userBalance, &response, &isDeleted, &date); err != nil {
		return nil, err
	}

	rec := &models.StoredRecord{
		Id:                nullString(id),
		OperationId:       nullString(operationId),
		UserId:            nullString(userId),
		Amount:            nullString(amount),
		UserBalance:       nullString(userBalance),
		OperationResponse: nullString(response),
		Date:              nullString(date),
	}
	if isDeleted.Valid {
		deleted := isDeleted.Bool
		rec.IsDeleted = &deleted
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return models.StringPtr(ns.String)
}

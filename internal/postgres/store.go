/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package postgres is the PostgreSQL balance and ledger store, built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	_ store.Backend               = (*Store)(nil)
	_ store.VersionedBalanceStore = (*Store)(nil)
	_ store.BalanceLister         = (*Store)(nil)
)

const uniqueViolation = "23505"

type Store struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewStore(ctx context.Context, cfg models.PostgresConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{pool: pool, queryTimeout: cfg.QueryTimeout}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Postgres store initialized", zap.Int32("max_conns", poolConfig.MaxConns))
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// withTimeout applies the per-query deadline when one is configured.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Store) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	balance, _, err := s.GetBalanceVersion(ctx, userId)
	return balance, err
}

func (s *Store) GetBalanceVersion(ctx context.Context, userId string) (decimal.Decimal, int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var balanceStr string
	var version int64
	err := s.pool.QueryRow(ctx, queryGetBalance, userId).Scan(&balanceStr, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, 0, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return decimal.Zero, 0, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		zap.L().Warn("Unparsable balance, treating as zero",
			zap.String("user_id", userId),
			zap.String("balance_str", balanceStr))
		return decimal.Zero, version, nil
	}
	return balance, version, nil
}

func (s *Store) SetBalance(ctx context.Context, userId string, balance decimal.Decimal) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, queryUpsertBalance, userId, balance.String()); err != nil {
		zap.L().Error("Failed to set balance", zap.String("user_id", userId), zap.Error(err))
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

func (s *Store) SetBalanceIfVersion(ctx context.Context, userId string, balance decimal.Decimal, version int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var tag pgconn.CommandTag
	var err error
	if version == 0 {
		tag, err = s.pool.Exec(ctx, queryInsertBalanceIfAbsent, userId, balance.String())
	} else {
		tag, err = s.pool.Exec(ctx, queryUpdateBalanceIfVersion, userId, balance.String(), version)
	}
	if err != nil {
		zap.L().Error("Failed to set balance", zap.String("user_id", userId), zap.Error(err))
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance for %s moved past version %d: %w", userId, version, store.ErrConcurrentModification)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context) ([]models.UserBalance, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryListBalances)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []models.UserBalance
	for rows.Next() {
		var userId, balanceStr string
		if err := rows.Scan(&userId, &balanceStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			balance = decimal.Zero
		}
		balances = append(balances, models.UserBalance{UserId: userId, Balance: balance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

func (s *Store) PutOperation(ctx context.Context, op models.Operation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, queryInsertOperation, op.Id, op.Type, op.Cost.String()); err != nil {
		zap.L().Error("Failed to insert operation", zap.String("id", op.Id), zap.Error(err))
		return wrapInsertError("operation", op.Id, err)
	}
	return nil
}

func (s *Store) PutRecord(ctx context.Context, rec models.Record) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, queryInsertRecord,
		rec.Id, rec.OperationId, rec.UserId, rec.Amount.String(), rec.UserBalance.String(),
		rec.OperationResponse, rec.IsDeleted, models.FormatTimestamp(rec.Date))
	if err != nil {
		zap.L().Error("Failed to insert record", zap.String("id", rec.Id), zap.Error(err))
		return wrapInsertError("record", rec.Id, err)
	}
	return nil
}

func (s *Store) GetOperationById(ctx context.Context, id string) (*models.StoredOperation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var op models.StoredOperation
	err := s.pool.QueryRow(ctx, queryGetOperationById, id).Scan(&op.Id, &op.Type, &op.Cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to query operation", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to query operation: %w", err)
	}
	return &op, nil
}

func (s *Store) QueryRecordsByUser(ctx context.Context, q store.RecordQuery) ([]models.StoredRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := buildRecordQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("Failed to query records", zap.String("user_id", q.UserId), zap.Error(err))
		return nil, fmt.Errorf("unable to query records: %w", err)
	}
	defer rows.Close()

	var records []models.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan record row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}
	return records, nil
}

func (s *Store) UpdateRecordDeleted(ctx context.Context, id, userId string) (*models.StoredRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := scanRecord(s.pool.QueryRow(ctx, querySoftDeleteRecord, id, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record %s for user %s: %w", id, userId, store.ErrConditionFailed)
	}
	if err != nil {
		zap.L().Error("Failed to soft delete record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to soft delete record: %w", err)
	}
	return rec, nil
}

// buildRecordQuery appends the optional predicates with positional arguments.
func buildRecordQuery(q store.RecordQuery) (string, []any) {
	query := queryRecordsByUserBase
	args := []any{q.UserId}
	if !q.IncludeDeleted {
		query += " AND NOT is_deleted"
	}
	if q.AmountContains != "" {
		args = append(args, q.AmountContains)
		query += fmt.Sprintf(" AND strpos(amount::text, $%d) > 0", len(args))
	}
	if q.SortHint == store.SortAsc {
		query += " ORDER BY date ASC"
	} else {
		query += " ORDER BY date DESC"
	}
	return query, args
}

func scanRecord(row pgx.Row) (*models.StoredRecord, error) {
	var rec models.StoredRecord
	err := row.Scan(&rec.Id, &rec.OperationId, &rec.UserId, &rec.Amount, &rec.UserBalance,
		&rec.OperationResponse, &rec.IsDeleted, &rec.Date)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func wrapInsertError(kind, id string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrDuplicateId)
	}
	return fmt.Errorf("unable to insert %s: %w", kind, err)
}

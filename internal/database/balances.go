package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the current balance for a user (zero when absent)
func (s *Service) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	balance, _, err := s.GetBalanceVersion(ctx, userId)
	return balance, err
}

// GetBalanceVersion returns the balance together with its row version
func (s *Service) GetBalanceVersion(ctx context.Context, userId string) (decimal.Decimal, int64, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId))

	var balanceStr string
	var version int64
	err := s.db.QueryRowContext(ctx, queryGetBalance, userId).Scan(&balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance row means zero balance
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
			zap.String("balance_str", balanceStr),
			zap.Error(err))
		return decimal.Zero, version, nil
	}

	zap.L().Debug("Retrieved balance",
		zap.String("user_id", userId),
		zap.String("balance", balance.String()),
		zap.Int64("version", version))
	return balance, version, nil
}

func (s *Service) SetBalance(ctx context.Context, userId string, balance decimal.Decimal) error {
	zap.L().Info("Setting balance", zap.String("user_id", userId), zap.String("balance", balance.String()))

	if _, err := s.db.ExecContext(ctx, queryUpsertBalance, userId, balance.String()); err != nil {
		zap.L().Error("Failed to set balance", zap.String("user_id", userId), zap.Error(err))
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// SetBalanceIfVersion writes the balance only if the row is still at version.
// Version 0 means the row must not exist yet.
func (s *Service) SetBalanceIfVersion(ctx context.Context, userId string, balance decimal.Decimal, version int64) error {
	zap.L().Info("Setting balance (optimistic)",
		zap.String("user_id", userId),
		zap.String("balance", balance.String()),
		zap.Int64("expected_version", version))

	var result sql.Result
	var err error
	if version == 0 {
		result, err = s.db.ExecContext(ctx, queryInsertBalanceIfAbsent, userId, balance.String())
	} else {
		result, err = s.db.ExecContext(ctx, queryUpdateBalanceIfVersion, balance.String(), userId, version)
	}
	if err != nil {
		zap.L().Error("Failed to set balance", zap.String("user_id", userId), zap.Error(err))
		return fmt.Errorf("failed to set balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}
	return nil
}

// ListBalances returns every stored balance ordered by user id
func (s *Service) ListBalances(ctx context.Context) ([]models.UserBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryListBalances)
	if err != nil {
		zap.L().Error("Failed to list balances", zap.Error(err))
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

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
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	return balances, nil
}

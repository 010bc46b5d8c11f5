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

package main

import (
	"context"
	"flag"
	"fmt"
	"regexp"

	"metered-ledger-go/internal/common"
	"metered-ledger-go/internal/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var userIdRegex = regexp.MustCompile(`^[A-Za-z0-9._@\-]{1,128}$`)

func validateUserId(userId string) error {
	if userId == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if !userIdRegex.MatchString(userId) {
		return fmt.Errorf("invalid user id: %s", userId)
	}
	return nil
}

func parseBalance(raw string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return fallback, nil
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", raw, err)
	}
	if balance.IsNegative() {
		return decimal.Zero, fmt.Errorf("balance must not be negative, got %s", balance)
	}
	return balance, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id to seed (default: a new random id)")
	balanceFlag := flag.String("balance", "", "Balance to set (default: INITIAL_BALANCE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	userId := *userFlag
	if userId == "" {
		userId = uuid.New().String()
	}
	if err := validateUserId(userId); err != nil {
		zap.L().Fatal("Invalid user id", zap.Error(err))
	}

	balance, err := parseBalance(*balanceFlag, cfg.Ledger.InitialBalance)
	if err != nil {
		zap.L().Fatal("Invalid balance", zap.Error(err))
	}

	services, err := common.InitializeLedgerOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger", zap.Error(err))
	}
	defer services.Close()

	previous, err := services.Ledger.GetBalance(ctx, userId)
	if err != nil {
		zap.L().Fatal("Failed to read current balance", zap.Error(err))
	}

	zap.L().Info("Setting user balance",
		zap.String("user_id", userId),
		zap.String("previous", previous.String()),
		zap.String("balance", balance.String()))

	if err := services.Ledger.SetBalance(ctx, userId, balance); err != nil {
		zap.L().Fatal("Failed to set balance", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("BALANCE SET", common.DefaultWidth)
	fmt.Printf("User:     %s\n", userId)
	fmt.Printf("Previous: %s\n", previous.String())
	fmt.Printf("Balance:  %s\n", balance.String())
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}

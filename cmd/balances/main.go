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

	"metered-ledger-go/internal/common"
	"metered-ledger-go/internal/config"
	"metered-ledger-go/internal/ledger"
	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers   int
	totalRecords int
	mismatched   int
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func printRecord(rec models.EnrichedRecord, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	if rec.Error != "" {
		fmt.Printf("%s %-24s: %s\n", symbol, derefOr(rec.Id, "?"), rec.Error)
		return
	}

	fmt.Printf("%s %-14s %12s -> balance %12s (response: %s, at: %s)\n",
		symbol,
		derefOr(rec.OperationType, "?"),
		derefOr(rec.Amount, "-"),
		derefOr(rec.UserBalance, "-"),
		derefOr(rec.OperationResponse, "-"),
		derefOr(rec.Date, "-"))
}

func printUserHeader(userId string, balance decimal.Decimal, recordCount int) {
	fmt.Printf("\n┌─ User: %s\n", userId)
	fmt.Printf("│  Balance: %s\n", balance.String())
	fmt.Printf("│  Records: %d\n", recordCount)
	common.PrintBoxSeparator(78)
}

func printReconciliation(r *ledger.Reconciliation) {
	status := "OK"
	if !r.Balanced() {
		status = fmt.Sprintf("MISMATCH (difference %s, unpriced %d)", r.Difference().String(), r.Unpriced)
	}
	fmt.Printf("   Reconcile: start %s - cost %s = %s, stored %s: %s\n",
		r.StartingBalance.String(),
		r.TotalCost.String(),
		r.Expected.String(),
		r.Actual.String(),
		status)
}

func processUser(ctx context.Context, svc *ledger.Service, userId string, history int, reconcile bool, starting decimal.Decimal, stats *balanceStats) error {
	balance, err := svc.GetBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	page, err := svc.QueryRecords(ctx, ledger.QueryParams{
		UserId:  userId,
		PerPage: history,
	})
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}

	printUserHeader(userId, balance, page.Pagination.Total)
	for i, rec := range page.Data {
		printRecord(rec, i == len(page.Data)-1)
	}
	stats.totalRecords += page.Pagination.Total

	if reconcile {
		r, err := svc.ReconcileBalance(ctx, userId, starting)
		if err != nil {
			return fmt.Errorf("failed to reconcile: %w", err)
		}
		printReconciliation(r)
		if !r.Balanced() {
			stats.mismatched++
		}
	}

	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Report a single user id (default: every user with a stored balance)")
	historyFlag := flag.Int("history", 5, "Number of recent records to show per user")
	reconcileFlag := flag.Bool("reconcile", false, "Check each balance against the cost of the user's operations")
	startingFlag := flag.String("starting", "", "Starting balance for reconciliation (default: INITIAL_BALANCE)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	starting := cfg.Ledger.InitialBalance
	if *startingFlag != "" {
		starting, err = decimal.NewFromString(*startingFlag)
		if err != nil {
			logger.Fatal("Invalid starting balance", zap.String("starting", *startingFlag), zap.Error(err))
		}
	}

	services, err := common.InitializeLedgerOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize ledger", zap.Error(err))
	}
	defer services.Close()

	var users []string
	if *userFlag != "" {
		users = []string{*userFlag}
	} else {
		lister, ok := services.Backend.(store.BalanceLister)
		if !ok {
			logger.Fatal("Backend cannot enumerate users, pass --user", zap.String("backend", cfg.Backend))
		}
		balances, err := lister.ListBalances(ctx)
		if err != nil {
			logger.Fatal("Failed to list balances", zap.Error(err))
		}
		for _, b := range balances {
			users = append(users, b.UserId)
		}
	}
	logger.Info("Retrieved users", zap.Int("count", len(users)))

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, userId := range users {
		stats.totalUsers++
		if err := processUser(ctx, services.Ledger, userId, *historyFlag, *reconcileFlag, starting, &stats); err != nil {
			logger.Error("Failed to process user", zap.String("user_id", userId), zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users, %d records", stats.totalUsers, stats.totalRecords)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d unreconciled", stats.mismatched)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("records", stats.totalRecords),
		zap.Int("mismatched", stats.mismatched))
}

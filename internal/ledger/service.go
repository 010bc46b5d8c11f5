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

package ledger

import (
	"context"
	"time"

	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultEnrichmentConcurrency = 16

// Service is the balance-transaction core plus the read side of the ledger.
type Service struct {
	balances store.BalanceStore
	ledger   store.LedgerStore
	prices   PriceTable

	now                   func() time.Time
	ids                   *idClock
	enrichmentConcurrency int
	locks                 *userLocks
}

type Option func(*Service)

// WithClock overrides the clock used for record dates and generated ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEnrichmentConcurrency bounds the per-query operation lookups in flight.
func WithEnrichmentConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.enrichmentConcurrency = n
		}
	}
}

func NewService(balances store.BalanceStore, ledger store.LedgerStore, prices PriceTable, opts ...Option) *Service {
	if prices == nil {
		prices = DefaultPrices()
	}

	s := &Service{
		balances:              balances,
		ledger:                ledger,
		prices:                prices,
		now:                   time.Now,
		enrichmentConcurrency: defaultEnrichmentConcurrency,
		locks:                 newUserLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ids = &idClock{now: s.now}
	return s
}

// NewServiceFromBackend wires both stores from a single backend.
func NewServiceFromBackend(backend store.Backend, prices PriceTable, opts ...Option) *Service {
	return NewService(backend, backend, prices, opts...)
}

func (s *Service) Prices() PriceTable {
	return s.prices
}

// GetBalance returns the user's current balance, zero when none is stored.
func (s *Service) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	if userId == "" {
		return decimal.Zero, newValidationError("user_id", "is required")
	}

	balance, err := s.balances.GetBalance(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return decimal.Zero, newStoreError("get balance", err)
	}
	return balance, nil
}

// SetBalance overwrites a user's balance. Used to provision starting balances.
func (s *Service) SetBalance(ctx context.Context, userId string, balance decimal.Decimal) error {
	if userId == "" {
		return newValidationError("user_id", "is required")
	}
	if balance.IsNegative() {
		return newValidationError("balance", "must not be negative")
	}

	unlock := s.locks.lock(userId)
	defer unlock()

	if err := s.balances.SetBalance(ctx, userId, balance); err != nil {
		zap.L().Error("Failed to set balance", zap.String("user_id", userId), zap.Error(err))
		return newStoreError("set balance", err)
	}

	zap.L().Info("Balance set",
		zap.String("user_id", userId),
		zap.String("balance", balance.String()))
	return nil
}

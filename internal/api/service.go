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

package api

import (
	"context"
	"fmt"

	"metered-ledger-go/internal/ledger"
	"metered-ledger-go/internal/operations"

	"github.com/shopspring/decimal"
)

func init() {
	// Balances, costs and amounts render as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LedgerService binds the ledger core and the operation registry to HTTP
type LedgerService struct {
	ledger     *ledger.Service
	operations *operations.Registry
	pinger     Pinger
}

func NewLedgerService(l *ledger.Service, ops *operations.Registry, pinger Pinger) *LedgerService {
	return &LedgerService{
		ledger:     l,
		operations: ops,
		pinger:     pinger,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	if err := s.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

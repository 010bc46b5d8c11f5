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
	"net/http"

	"metered-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GetBalance returns the current balance for a user. Users without a
// balance row read as zero.
func (s *LedgerService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "id")

	balance, err := s.ledger.GetBalance(r.Context(), userId)
	if err != nil {
		zap.L().Error("Failed to get user balance",
			zap.String("user_id", userId),
			zap.String("correlation_id", CorrelationIDFromContext(r.Context())),
			zap.Error(err))
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.UserBalance{
		UserId:  userId,
		Balance: balance,
	})
}

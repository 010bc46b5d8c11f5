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

package database

const (
	// Balance queries
	queryGetBalance = `
		SELECT balance, version
		FROM balances
		WHERE user_id = ?`

	queryUpsertBalance = `
		INSERT INTO balances (user_id, balance, version)
		VALUES (?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE
		SET balance = excluded.balance, version = balances.version + 1, updated_at = CURRENT_TIMESTAMP`

	queryInsertBalanceIfAbsent = `
		INSERT INTO balances (user_id, balance, version)
		VALUES (?, ?, 1)
		ON CONFLICT(user_id) DO NOTHING`

	queryUpdateBalanceIfVersion = `
		UPDATE balances
		SET balance = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND version = ?`

	queryListBalances = `
		SELECT user_id, balance
		FROM balances
		ORDER BY user_id`

	// Operation queries
	queryInsertOperation = `
		INSERT INTO operations (id, type, cost)
		VALUES (?, ?, ?)`

	queryGetOperationById = `
		SELECT id, type, cost
		FROM operations
		WHERE id = ?`

	// Record queries
	queryInsertRecord = `
		INSERT INTO records (id, operation_id, user_id, amount, user_balance, operation_response, is_deleted, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryRecordsByUserBase = `
		SELECT id, operation_id, user_id, amount, user_balance, operation_response, is_deleted, date
		FROM records
		WHERE user_id = ?`

	queryRecordsNotDeleted = ` AND is_deleted = 0`

	queryRecordsAmountContains = ` AND instr(amount, ?) > 0`

	queryRecordsOrderAsc = ` ORDER BY date ASC`

	queryRecordsOrderDesc = ` ORDER BY date DESC`

	querySoftDeleteRecord = `
		UPDATE records
		SET is_deleted = 1
		WHERE id = ? AND user_id = ?
		RETURNING id, operation_id, user_id, amount, user_balance, operation_response, is_deleted, date`
)

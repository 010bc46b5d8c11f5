package postgres

const schema = `
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		balance NUMERIC NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		cost NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS records (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		operation_id TEXT,
		amount NUMERIC,
		user_balance NUMERIC,
		operation_response TEXT,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		date TEXT,
		PRIMARY KEY (id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_user_date ON records(user_id, date);
`

const (
	queryGetBalance = `
		SELECT balance::text, version
		FROM balances
		WHERE user_id = $1`

	queryUpsertBalance = `
		INSERT INTO balances (user_id, balance, version)
		VALUES ($1, $2::numeric, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = EXCLUDED.balance, version = balances.version + 1, updated_at = now()`

	queryInsertBalanceIfAbsent = `
		INSERT INTO balances (user_id, balance, version)
		VALUES ($1, $2::numeric, 1)
		ON CONFLICT (user_id) DO NOTHING`

	queryUpdateBalanceIfVersion = `
		UPDATE balances
		SET balance = $2::numeric, version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $3`

	queryListBalances = `
		SELECT user_id, balance::text
		FROM balances
		ORDER BY user_id`

	queryInsertOperation = `
		INSERT INTO operations (id, type, cost)
		VALUES ($1, $2, $3::numeric)`

	queryGetOperationById = `
		SELECT id, type, cost::text
		FROM operations
		WHERE id = $1`

	queryInsertRecord = `
		INSERT INTO records (id, operation_id, user_id, amount, user_balance, operation_response, is_deleted, date)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)`

	queryRecordsByUserBase = `
		SELECT id, operation_id, user_id, amount::text, user_balance::text, operation_response, is_deleted, date
		FROM records
		WHERE user_id = $1`

	querySoftDeleteRecord = `
		UPDATE records
		SET is_deleted = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING id, operation_id, user_id, amount::text, user_balance::text, operation_response, is_deleted, date`
)

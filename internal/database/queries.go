package database

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Account queries
	queryGetAccount = `
		SELECT id, user_id, balance, lifetime_earned, lifetime_spent, version, created_at, updated_at
		FROM credit_accounts
		WHERE user_id = ?`

	queryGetAccountBalance = `
		SELECT balance
		FROM credit_accounts
		WHERE user_id = ?`

	queryInsertAccount = `
		INSERT INTO credit_accounts (id, user_id, balance, lifetime_earned, lifetime_spent, version)
		VALUES (?, ?, 0, 0, 0, 1)`

	queryInsertAccountIgnoreConflict = `
		INSERT INTO credit_accounts (id, user_id, balance, lifetime_earned, lifetime_spent, version)
		VALUES (?, ?, 0, 0, 0, 1)
		ON CONFLICT(user_id) DO NOTHING`

	queryUpdateAccountBalance = `
		UPDATE credit_accounts
		SET balance = ?, lifetime_earned = ?, lifetime_spent = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND version = ?`

	queryGetLowCreditAccounts = `
		SELECT u.id, u.name, u.email, u.created_at, u.updated_at, a.balance
		FROM credit_accounts a
		JOIN users u ON u.id = a.user_id
		WHERE a.balance > 0 AND a.balance <= ? AND u.active = 1
		ORDER BY a.balance`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(amount), 0) AS calculated_balance
		FROM credit_transactions
		WHERE user_id = ?`

	// Transaction queries
	queryCheckDuplicateEvent = `
		SELECT id FROM credit_transactions WHERE external_event_id = ? LIMIT 1`

	queryInsertTransaction = `
		INSERT INTO credit_transactions (
			id, user_id, amount, kind, description, balance_before, balance_after,
			metadata, external_event_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, user_id, amount, kind, description, balance_before, balance_after,
		          metadata, external_event_id, created_at`

	queryGetTransactionHistory = `
		SELECT id, user_id, amount, kind, description, balance_before, balance_after,
		       metadata, external_event_id, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetTransactionHistoryByKind = `
		SELECT id, user_id, amount, kind, description, balance_before, balance_after,
		       metadata, external_event_id, created_at
		FROM credit_transactions
		WHERE user_id = ? AND kind = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryCountTransactions = `
		SELECT COUNT(*) FROM credit_transactions WHERE user_id = ?`

	queryCountTransactionsByKind = `
		SELECT COUNT(*) FROM credit_transactions WHERE user_id = ? AND kind = ?`

	queryGetLastEarningTransaction = `
		SELECT id, user_id, amount, kind, description, balance_before, balance_after,
		       metadata, external_event_id, created_at
		FROM credit_transactions
		WHERE user_id = ? AND kind != 'DEDUCTION'
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`

	queryGetLastDeductionTransaction = `
		SELECT id, user_id, amount, kind, description, balance_before, balance_after,
		       metadata, external_event_id, created_at
		FROM credit_transactions
		WHERE user_id = ? AND kind = 'DEDUCTION'
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`
)

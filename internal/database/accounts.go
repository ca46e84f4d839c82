package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"credit-ledger-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetBalance returns the current balance for a user, 0 if no account exists.
// It never creates an account.
func (s *Service) GetBalance(ctx context.Context, userId string) (int64, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId))

	var balance int64
	err := s.db.QueryRowContext(ctx, queryGetAccountBalance, userId).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// No account record means zero balance
		return 0, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// GetOrCreateAccount returns the user's credit account, creating a
// zero-balance account if none exists. Safe to call concurrently: the insert
// is a no-op when another caller won the creation race.
func (s *Service) GetOrCreateAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	account, err := s.getAccount(ctx, userId)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get credit account: %w", err)
	}

	zap.L().Info("Creating credit account", zap.String("user_id", userId))
	if _, err := s.db.ExecContext(ctx, queryInsertAccountIgnoreConflict, uuid.New().String(), userId); err != nil {
		return nil, fmt.Errorf("failed to create credit account: %w", err)
	}

	account, err = s.getAccount(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to read back credit account: %w", err)
	}
	return account, nil
}

// HasCredits reports whether the user's balance covers amount. This is a
// point-in-time check with no reservation; callers that need the credits must
// deduct immediately before starting the paid action.
func (s *Service) HasCredits(ctx context.Context, userId string, amount int64) (bool, error) {
	balance, err := s.GetBalance(ctx, userId)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// GetLowCreditAccounts returns active users whose balance is positive but at
// or below threshold, ordered by balance ascending.
func (s *Service) GetLowCreditAccounts(ctx context.Context, threshold int64) ([]models.LowCreditAccount, error) {
	zap.L().Debug("Getting low credit accounts", zap.Int64("threshold", threshold))

	rows, err := s.db.QueryContext(ctx, queryGetLowCreditAccounts, threshold)
	if err != nil {
		zap.L().Error("Failed to get low credit accounts", zap.Error(err))
		return nil, fmt.Errorf("failed to get low credit accounts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.LowCreditAccount
	for rows.Next() {
		var account models.LowCreditAccount
		err := rows.Scan(&account.User.Id, &account.User.Name, &account.User.Email,
			&account.User.CreatedAt, &account.User.UpdatedAt, &account.Balance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan low credit account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during low credit account iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating low credit accounts: %w", err)
	}

	return accounts, nil
}

// ReconcileBalance verifies that the account balance matches the sum of all
// recorded transaction amounts for the user.
func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId))

	currentBalance, err := s.GetBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	var calculatedBalance int64
	err = s.db.QueryRowContext(ctx, queryReconcileBalance, userId).Scan(&calculatedBalance)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from transactions: %w", err)
	}

	if currentBalance != calculatedBalance {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.Int64("current_balance", currentBalance),
			zap.Int64("calculated_balance", calculatedBalance))
		return fmt.Errorf("balance mismatch: current=%d, calculated=%d", currentBalance, calculatedBalance)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.Int64("balance", currentBalance))
	return nil
}

func (s *Service) getAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := s.db.QueryRowContext(ctx, queryGetAccount, userId).Scan(
		&account.Id, &account.UserId, &account.Balance, &account.LifetimeEarned,
		&account.LifetimeSpent, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

package api

import (
	"context"
	"fmt"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	defaultRecentLimit  = 10
	maxRecentLimit      = 20
	maxGrantAmount      = 1_000_000
)

// GetBalance returns the user's current balance, 0 when no account exists.
func (s *LedgerService) GetBalance(ctx context.Context, userId string) (int64, error) {
	if userId == "" {
		return 0, fmt.Errorf("user_id is required")
	}

	balance, err := s.db.GetBalance(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return 0, fmt.Errorf("failed to retrieve balance")
	}
	return balance, nil
}

// GetAccountDetails returns the full credit account, creating a zero-balance
// account on first access.
func (s *LedgerService) GetAccountDetails(ctx context.Context, userId string) (*models.CreditAccount, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	account, err := s.db.GetOrCreateAccount(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get account details", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve account details")
	}
	return account, nil
}

// HasCredits reports whether the balance covers amount. Point-in-time only;
// there is no reservation between this check and a later deduction.
func (s *LedgerService) HasCredits(ctx context.Context, userId string, amount int64) (bool, error) {
	if userId == "" {
		return false, fmt.Errorf("user_id is required")
	}
	if amount <= 0 {
		return false, store.ErrInvalidAmount
	}
	return s.db.HasCredits(ctx, userId, amount)
}

// GrantCredits applies an admin or system grant after bounds-checking the
// amount and kind.
func (s *LedgerService) GrantCredits(ctx context.Context, params store.GrantParams) (*models.CreditAccount, *models.CreditTransaction, error) {
	if params.UserId == "" {
		return nil, nil, fmt.Errorf("user_id is required")
	}
	if params.Amount <= 0 || params.Amount > maxGrantAmount {
		return nil, nil, fmt.Errorf("%w: got %d (max %d)", store.ErrInvalidAmount, params.Amount, maxGrantAmount)
	}
	if params.Description == "" {
		return nil, nil, fmt.Errorf("description is required")
	}
	return s.db.GrantCredits(ctx, params)
}

// DeductCredits charges the user for a priced action.
func (s *LedgerService) DeductCredits(ctx context.Context, params store.DeductParams) (*models.CreditAccount, *models.CreditTransaction, error) {
	if params.UserId == "" {
		return nil, nil, fmt.Errorf("user_id is required")
	}
	if params.ToolId == "" || params.ToolName == "" {
		return nil, nil, fmt.Errorf("tool_id and tool_name are required")
	}
	return s.db.DeductCredits(ctx, params)
}

// RefundCredits returns credits with kind REFUND.
func (s *LedgerService) RefundCredits(ctx context.Context, params store.RefundParams) (*models.CreditAccount, *models.CreditTransaction, error) {
	if params.UserId == "" {
		return nil, nil, fmt.Errorf("user_id is required")
	}
	if params.Amount <= 0 || params.Amount > maxGrantAmount {
		return nil, nil, fmt.Errorf("%w: got %d (max %d)", store.ErrInvalidAmount, params.Amount, maxGrantAmount)
	}
	if params.Reason == "" {
		return nil, nil, fmt.Errorf("reason is required")
	}
	return s.db.RefundCredits(ctx, params)
}

// GetTransactionHistory returns a history page with the limit clamped to
// [1, 100] and a non-negative offset.
func (s *LedgerService) GetTransactionHistory(ctx context.Context, params store.HistoryParams) (*models.TransactionPage, error) {
	if params.UserId == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.Limit <= 0 || params.Limit > maxHistoryLimit {
		params.Limit = defaultHistoryLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	if params.Kind != "" && !params.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidKind, params.Kind)
	}

	page, err := s.db.GetTransactionHistory(ctx, params)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", params.UserId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history")
	}
	return page, nil
}

// GetRecentTransactions is the quick dashboard view: first page, small limit.
func (s *LedgerService) GetRecentTransactions(ctx context.Context, userId string, limit int) (*models.TransactionPage, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = defaultRecentLimit
	}
	return s.GetTransactionHistory(ctx, store.HistoryParams{
		UserId: userId,
		Limit:  limit,
		Offset: 0,
	})
}

// GetStats returns account totals and the most recent earning/deduction.
func (s *LedgerService) GetStats(ctx context.Context, userId string) (*models.AccountStats, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	stats, err := s.db.GetTransactionStats(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get transaction stats", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction stats")
	}
	return stats, nil
}

// GetLowCreditAccounts lists users at or below the given positive balance.
func (s *LedgerService) GetLowCreditAccounts(ctx context.Context, threshold int64) ([]models.LowCreditAccount, error) {
	if threshold <= 0 {
		threshold = 100
	}
	return s.db.GetLowCreditAccounts(ctx, threshold)
}

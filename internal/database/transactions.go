package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// GetTransactionHistory returns one page of a user's transaction history,
// newest first, with the total count and paging flags.
func (s *Service) GetTransactionHistory(ctx context.Context, params store.HistoryParams) (*models.TransactionPage, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", params.UserId),
		zap.String("kind", string(params.Kind)),
		zap.Int("limit", params.Limit),
		zap.Int("offset", params.Offset))

	var rows *sql.Rows
	var err error
	if params.Kind != "" {
		rows, err = s.db.QueryContext(ctx, queryGetTransactionHistoryByKind,
			params.UserId, string(params.Kind), params.Limit, params.Offset)
	} else {
		rows, err = s.db.QueryContext(ctx, queryGetTransactionHistory,
			params.UserId, params.Limit, params.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.CreditTransaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *transaction)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	total, err := s.countTransactions(ctx, params.UserId, params.Kind)
	if err != nil {
		return nil, err
	}

	page := &models.TransactionPage{
		Transactions: transactions,
		Total:        total,
		HasMore:      params.Offset+params.Limit < total,
	}
	if params.Limit > 0 {
		page.Page = params.Offset/params.Limit + 1
		page.TotalPages = (total + params.Limit - 1) / params.Limit
	}
	return page, nil
}

// GetTransactionStats returns the account totals plus the most recent earning
// and deduction transactions. The account is created if it does not exist.
func (s *Service) GetTransactionStats(ctx context.Context, userId string) (*models.AccountStats, error) {
	account, err := s.GetOrCreateAccount(ctx, userId)
	if err != nil {
		return nil, err
	}

	total, err := s.countTransactions(ctx, userId, "")
	if err != nil {
		return nil, err
	}

	lastEarning, err := s.getSingleTransaction(ctx, queryGetLastEarningTransaction, userId)
	if err != nil {
		return nil, err
	}
	lastDeduction, err := s.getSingleTransaction(ctx, queryGetLastDeductionTransaction, userId)
	if err != nil {
		return nil, err
	}

	return &models.AccountStats{
		CurrentBalance:    account.Balance,
		LifetimeEarned:    account.LifetimeEarned,
		LifetimeSpent:     account.LifetimeSpent,
		TotalTransactions: total,
		LastEarning:       lastEarning,
		LastDeduction:     lastDeduction,
	}, nil
}

func (s *Service) countTransactions(ctx context.Context, userId string, kind models.TransactionKind) (int, error) {
	var total int
	var err error
	if kind != "" {
		err = s.db.QueryRowContext(ctx, queryCountTransactionsByKind, userId, string(kind)).Scan(&total)
	} else {
		err = s.db.QueryRowContext(ctx, queryCountTransactions, userId).Scan(&total)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return total, nil
}

func (s *Service) getSingleTransaction(ctx context.Context, query, userId string) (*models.CreditTransaction, error) {
	row := s.db.QueryRowContext(ctx, query, userId)
	transaction, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.CreditTransaction, error) {
	var transaction models.CreditTransaction
	var metadataStr string
	var eventId sql.NullString
	err := row.Scan(&transaction.Id, &transaction.UserId, &transaction.Amount,
		&transaction.Kind, &transaction.Description, &transaction.BalanceBefore,
		&transaction.BalanceAfter, &metadataStr, &eventId, &transaction.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	transaction.ExternalEventId = eventId.String
	if transaction.Metadata, err = decodeMetadata(metadataStr); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &transaction, nil
}

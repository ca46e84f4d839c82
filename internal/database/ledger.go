package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// maxWriteRetries bounds how often a grant/deduct is retried when the
// optimistic version check loses against a concurrent writer on the same
// account row.
const maxWriteRetries = 10

// ledgerEntry is the internal, signed form of a balance mutation. Grants
// carry a positive amount, deductions a negative one.
type ledgerEntry struct {
	userId          string
	amount          int64
	kind            models.TransactionKind
	description     string
	metadata        map[string]string
	eventId         string
	createIfMissing bool
	requireFunds    bool
}

// GrantCredits atomically increases a user's balance and appends the audit
// transaction. The account is created on first grant. Fails with
// store.ErrInvalidAmount for non-positive amounts and with
// store.ErrDuplicateTransaction when params.EventId was already recorded.
func (s *Service) GrantCredits(ctx context.Context, params store.GrantParams) (*models.CreditAccount, *models.CreditTransaction, error) {
	if params.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: got %d", store.ErrInvalidAmount, params.Amount)
	}
	if !params.Kind.IsEarning() {
		return nil, nil, fmt.Errorf("%w: %q is not an earning kind", store.ErrInvalidKind, params.Kind)
	}

	return s.applyEntry(ctx, ledgerEntry{
		userId:          params.UserId,
		amount:          params.Amount,
		kind:            params.Kind,
		description:     params.Description,
		metadata:        params.Metadata,
		eventId:         params.EventId,
		createIfMissing: true,
	})
}

// DeductCredits atomically decreases a user's balance for a priced action and
// appends a DEDUCTION transaction with a negative amount. Fails with
// store.ErrAccountNotFound when the user has no account and with
// *store.InsufficientCreditsError when the balance is too low; in both cases
// no state is changed.
func (s *Service) DeductCredits(ctx context.Context, params store.DeductParams) (*models.CreditAccount, *models.CreditTransaction, error) {
	if params.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: got %d", store.ErrInvalidAmount, params.Amount)
	}

	metadata := map[string]string{
		"tool_id":   params.ToolId,
		"tool_name": params.ToolName,
	}
	if params.GenerationId != "" {
		metadata["generation_id"] = params.GenerationId
	}

	return s.applyEntry(ctx, ledgerEntry{
		userId:       params.UserId,
		amount:       -params.Amount,
		kind:         models.KindDeduction,
		description:  fmt.Sprintf("Used %s", params.ToolName),
		metadata:     metadata,
		requireFunds: true,
	})
}

// RefundCredits grants credits back with kind REFUND, recording the original
// transaction id for traceability. It does not verify the original
// transaction; that is the caller's responsibility.
func (s *Service) RefundCredits(ctx context.Context, params store.RefundParams) (*models.CreditAccount, *models.CreditTransaction, error) {
	metadata := map[string]string{"reason": params.Reason}
	if params.OriginalTransactionId != "" {
		metadata["original_transaction_id"] = params.OriginalTransactionId
	}

	return s.GrantCredits(ctx, store.GrantParams{
		UserId:      params.UserId,
		Amount:      params.Amount,
		Kind:        models.KindRefund,
		Description: fmt.Sprintf("Refund: %s", params.Reason),
		Metadata:    metadata,
	})
}

// applyEntry runs the read-modify-write cycle for one ledger entry. The
// account row carries a version column; the balance update is a
// compare-and-swap on that version, retried a bounded number of times so
// concurrent writers on the same account serialize instead of failing.
func (s *Service) applyEntry(ctx context.Context, entry ledgerEntry) (*models.CreditAccount, *models.CreditTransaction, error) {
	zap.L().Info("Processing ledger entry",
		zap.String("user_id", entry.userId),
		zap.String("kind", string(entry.kind)),
		zap.Int64("amount", entry.amount),
		zap.String("event_id", entry.eventId))

	// Check for a redelivered upstream event before doing any work. The
	// unique index on external_event_id still backstops a race between two
	// deliveries of the same event.
	if entry.eventId != "" {
		var existingTxId string
		err := s.db.QueryRowContext(ctx, queryCheckDuplicateEvent, entry.eventId).Scan(&existingTxId)
		if err == nil {
			zap.L().Warn("Duplicate payment event detected, skipping",
				zap.String("event_id", entry.eventId),
				zap.String("existing_transaction_id", existingTxId))
			return nil, nil, fmt.Errorf("%w: event %s already recorded", store.ErrDuplicateTransaction, entry.eventId)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("failed to check for duplicate event: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		account, transaction, err := s.applyEntryOnce(ctx, entry)
		if err == nil {
			zap.L().Info("Ledger entry applied",
				zap.String("transaction_id", transaction.Id),
				zap.String("user_id", entry.userId),
				zap.Int64("balance_before", transaction.BalanceBefore),
				zap.Int64("balance_after", transaction.BalanceAfter))
			return account, transaction, nil
		}
		if !errors.Is(err, store.ErrConcurrentModification) {
			return nil, nil, err
		}
		lastErr = err
		zap.L().Debug("Ledger write lost version race, retrying",
			zap.String("user_id", entry.userId),
			zap.Int("attempt", attempt+1))
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}

	return nil, nil, fmt.Errorf("ledger write did not converge after %d attempts: %w", maxWriteRetries, lastErr)
}

func (s *Service) applyEntryOnce(ctx context.Context, entry ledgerEntry) (*models.CreditAccount, *models.CreditTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var account models.CreditAccount
	err = tx.QueryRowContext(ctx, queryGetAccount, entry.userId).Scan(
		&account.Id, &account.UserId, &account.Balance, &account.LifetimeEarned,
		&account.LifetimeSpent, &account.Version, &account.CreatedAt, &account.UpdatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !entry.createIfMissing {
			return nil, nil, fmt.Errorf("%w: user %s", store.ErrAccountNotFound, entry.userId)
		}
		account = models.CreditAccount{
			Id:      uuid.New().String(),
			UserId:  entry.userId,
			Version: 1,
		}
		if _, err := tx.ExecContext(ctx, queryInsertAccount, account.Id, account.UserId); err != nil {
			// A concurrent writer created the account first; retry reads it.
			if isUniqueConstraint(err) {
				return nil, nil, fmt.Errorf("account creation raced - %w", store.ErrConcurrentModification)
			}
			return nil, nil, fmt.Errorf("failed to create credit account: %w", err)
		}
	case err != nil:
		return nil, nil, fmt.Errorf("failed to get credit account: %w", err)
	}

	if entry.requireFunds && account.Balance+entry.amount < 0 {
		return nil, nil, &store.InsufficientCreditsError{
			Balance:   account.Balance,
			Requested: -entry.amount,
		}
	}

	balanceBefore := account.Balance
	balanceAfter := balanceBefore + entry.amount

	lifetimeEarned := account.LifetimeEarned
	lifetimeSpent := account.LifetimeSpent
	if entry.amount >= 0 {
		lifetimeEarned += entry.amount
	} else {
		lifetimeSpent += -entry.amount
	}

	metadataJson, err := encodeMetadata(entry.metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode transaction metadata: %w", err)
	}

	transaction := &models.CreditTransaction{}
	var metadataStr string
	var eventId sql.NullString
	err = tx.QueryRowContext(ctx, queryInsertTransaction,
		uuid.New().String(), entry.userId, entry.amount, string(entry.kind), entry.description,
		balanceBefore, balanceAfter, metadataJson, nullableString(entry.eventId), time.Now().UTC()).
		Scan(&transaction.Id, &transaction.UserId, &transaction.Amount, &transaction.Kind,
			&transaction.Description, &transaction.BalanceBefore, &transaction.BalanceAfter,
			&metadataStr, &eventId, &transaction.CreatedAt)
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, nil, fmt.Errorf("%w: event %s already recorded", store.ErrDuplicateTransaction, entry.eventId)
		}
		return nil, nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	transaction.ExternalEventId = eventId.String
	if transaction.Metadata, err = decodeMetadata(metadataStr); err != nil {
		return nil, nil, fmt.Errorf("failed to decode returned metadata: %w", err)
	}

	// Update account balance (compare-and-swap on version)
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance,
		balanceAfter, lifetimeEarned, lifetimeSpent, entry.userId, account.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	account.Balance = balanceAfter
	account.LifetimeEarned = lifetimeEarned
	account.LifetimeSpent = lifetimeSpent
	account.Version++
	return &account, transaction, nil
}

func isUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMetadata(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return map[string]string{}, nil
	}
	metadata := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

package store

import (
	"context"
	"errors"
	"fmt"

	"credit-ledger-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidKind            = errors.New("invalid transaction kind")
	ErrAccountNotFound        = errors.New("credit account not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// InsufficientCreditsError is returned when a deduction exceeds the current
// balance. It carries both sides so callers can build a user-facing message.
type InsufficientCreditsError struct {
	Balance   int64
	Requested int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d but only have %d", e.Requested, e.Balance)
}

// GrantParams contains the parameters for granting credits to a user.
type GrantParams struct {
	UserId      string
	Amount      int64
	Kind        models.TransactionKind
	Description string
	Metadata    map[string]string
	// EventId is an optional upstream idempotency key (e.g. a payment event
	// id). A grant with an EventId already recorded is rejected with
	// ErrDuplicateTransaction instead of being applied twice.
	EventId string
}

// DeductParams contains the parameters for deducting credits for a priced action.
type DeductParams struct {
	UserId       string
	Amount       int64
	ToolId       string
	ToolName     string
	GenerationId string
}

// RefundParams contains the parameters for refunding a prior deduction.
type RefundParams struct {
	UserId                string
	Amount                int64
	Reason                string
	OriginalTransactionId string
}

// HistoryParams selects a page of a user's transaction history.
type HistoryParams struct {
	UserId string
	Limit  int
	Offset int
	Kind   models.TransactionKind // optional filter; empty means all kinds
}

// LedgerStore defines the contract the credit ledger backend must satisfy.
type LedgerStore interface {
	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, error)

	// --- Balance mutations (atomic, all-or-nothing) ---
	GrantCredits(ctx context.Context, params GrantParams) (*models.CreditAccount, *models.CreditTransaction, error)
	DeductCredits(ctx context.Context, params DeductParams) (*models.CreditAccount, *models.CreditTransaction, error)
	RefundCredits(ctx context.Context, params RefundParams) (*models.CreditAccount, *models.CreditTransaction, error)

	// --- Balance reads ---
	GetBalance(ctx context.Context, userId string) (int64, error)
	GetOrCreateAccount(ctx context.Context, userId string) (*models.CreditAccount, error)
	HasCredits(ctx context.Context, userId string, amount int64) (bool, error)
	GetLowCreditAccounts(ctx context.Context, threshold int64) ([]models.LowCreditAccount, error)
	ReconcileBalance(ctx context.Context, userId string) error

	// --- Transaction history ---
	GetTransactionHistory(ctx context.Context, params HistoryParams) (*models.TransactionPage, error)
	GetTransactionStats(ctx context.Context, userId string) (*models.AccountStats, error)

	// --- Lifecycle ---
	Close()
}

package models

import "time"

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	KindPurchase     TransactionKind = "PURCHASE"
	KindSubscription TransactionKind = "SUBSCRIPTION"
	KindGrant        TransactionKind = "GRANT"
	KindBonus        TransactionKind = "BONUS"
	KindRefund       TransactionKind = "REFUND"
	KindDeduction    TransactionKind = "DEDUCTION"
)

// EarningKinds are the kinds allowed on a credit grant.
var EarningKinds = []TransactionKind{
	KindPurchase, KindSubscription, KindGrant, KindBonus, KindRefund,
}

// IsEarning reports whether the kind increases a balance.
func (k TransactionKind) IsEarning() bool {
	for _, earning := range EarningKinds {
		if k == earning {
			return true
		}
	}
	return false
}

// IsValid reports whether the kind is a known transaction kind.
func (k TransactionKind) IsValid() bool {
	return k == KindDeduction || k.IsEarning()
}

// User represents a user in the system
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CreditAccount represents current balance state for one user (hot data).
// Invariant: Balance = LifetimeEarned - LifetimeSpent, and Balance >= 0.
type CreditAccount struct {
	Id             string    `db:"id"`
	UserId         string    `db:"user_id"`
	Balance        int64     `db:"balance"`
	LifetimeEarned int64     `db:"lifetime_earned"`
	LifetimeSpent  int64     `db:"lifetime_spent"`
	Version        int64     `db:"version"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// CreditTransaction represents one immutable balance-changing event (cold data).
// Amount is signed: positive for grants, negative for deductions.
type CreditTransaction struct {
	Id              string            `db:"id"`
	UserId          string            `db:"user_id"`
	Amount          int64             `db:"amount"`
	Kind            TransactionKind   `db:"kind"`
	Description     string            `db:"description"`
	BalanceBefore   int64             `db:"balance_before"`
	BalanceAfter    int64             `db:"balance_after"`
	Metadata        map[string]string `db:"metadata"`
	ExternalEventId string            `db:"external_event_id"`
	CreatedAt       time.Time         `db:"created_at"`
}

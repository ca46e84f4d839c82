package models

// TransactionPage is one page of a user's transaction history, newest first.
type TransactionPage struct {
	Transactions []CreditTransaction `json:"transactions"`
	Total        int                 `json:"total"`
	HasMore      bool                `json:"has_more"`
	Page         int                 `json:"page"`
	TotalPages   int                 `json:"total_pages"`
}

// AccountStats summarizes a user's credit activity for dashboard display.
type AccountStats struct {
	CurrentBalance    int64              `json:"current_balance"`
	LifetimeEarned    int64              `json:"lifetime_earned"`
	LifetimeSpent     int64              `json:"lifetime_spent"`
	TotalTransactions int                `json:"total_transactions"`
	LastEarning       *CreditTransaction `json:"last_earning,omitempty"`
	LastDeduction     *CreditTransaction `json:"last_deduction,omitempty"`
}

// LowCreditAccount pairs a user with their remaining balance, for
// low-balance notification sweeps.
type LowCreditAccount struct {
	User    User  `json:"user"`
	Balance int64 `json:"balance"`
}

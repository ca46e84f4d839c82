package api

import (
	"context"
	"fmt"

	"credit-ledger-go/internal/store"
)

// LedgerService wraps the ledger store with input validation and the
// presentation-level defaults the HTTP and CLI surfaces share.
type LedgerService struct {
	db store.LedgerStore
}

func NewLedgerService(db store.LedgerStore) *LedgerService {
	return &LedgerService{
		db: db,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.db.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

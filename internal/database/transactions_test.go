package database

import (
	"context"
	"testing"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"
)

func seedTransactions(t *testing.T, service *Service, userId string, grants, deductions int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < grants; i++ {
		if _, _, err := service.GrantCredits(ctx, store.GrantParams{
			UserId: userId, Amount: 10, Kind: models.KindGrant, Description: "seed grant",
		}); err != nil {
			t.Fatalf("Seed grant failed: %v", err)
		}
	}
	for i := 0; i < deductions; i++ {
		if _, _, err := service.DeductCredits(ctx, store.DeductParams{
			UserId: userId, Amount: 1, ToolId: "text-gen", ToolName: "Text Generator",
		}); err != nil {
			t.Fatalf("Seed deduction failed: %v", err)
		}
	}
}

func TestGetTransactionHistory_Pagination(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")
	seedTransactions(t, service, "user1", 7, 0)

	ctx := context.Background()

	first, err := service.GetTransactionHistory(ctx, store.HistoryParams{
		UserId: "user1", Limit: 3, Offset: 0,
	})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(first.Transactions) != 3 {
		t.Errorf("Expected 3 transactions on first page, got %d", len(first.Transactions))
	}
	if first.Total != 7 {
		t.Errorf("Expected total 7, got %d", first.Total)
	}
	if !first.HasMore {
		t.Error("Expected HasMore on first page")
	}
	if first.Page != 1 || first.TotalPages != 3 {
		t.Errorf("Expected page 1 of 3, got %d of %d", first.Page, first.TotalPages)
	}

	last, err := service.GetTransactionHistory(ctx, store.HistoryParams{
		UserId: "user1", Limit: 3, Offset: 6,
	})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(last.Transactions) != 1 {
		t.Errorf("Expected 1 transaction on last page, got %d", len(last.Transactions))
	}
	if last.HasMore {
		t.Error("Expected HasMore false on last page")
	}
	if last.Page != 3 {
		t.Errorf("Expected page 3, got %d", last.Page)
	}
}

func TestGetTransactionHistory_Ordering(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")
	seedTransactions(t, service, "user1", 5, 0)

	page, err := service.GetTransactionHistory(context.Background(), store.HistoryParams{
		UserId: "user1", Limit: 10,
	})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}

	// Newest first: balance_after decreases walking down the page since every
	// seeded entry is a grant.
	for i := 1; i < len(page.Transactions); i++ {
		if page.Transactions[i-1].BalanceAfter < page.Transactions[i].BalanceAfter {
			t.Errorf("History not newest-first at index %d: %d before %d",
				i, page.Transactions[i-1].BalanceAfter, page.Transactions[i].BalanceAfter)
		}
	}
}

func TestGetTransactionHistory_KindFilter(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")
	seedTransactions(t, service, "user1", 4, 3)

	page, err := service.GetTransactionHistory(context.Background(), store.HistoryParams{
		UserId: "user1", Limit: 10, Kind: models.KindDeduction,
	})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Expected 3 deductions, got %d", page.Total)
	}
	for _, transaction := range page.Transactions {
		if transaction.Kind != models.KindDeduction {
			t.Errorf("Expected only DEDUCTION rows, got %s", transaction.Kind)
		}
	}
}

func TestGetTransactionHistory_Empty(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	page, err := service.GetTransactionHistory(context.Background(), store.HistoryParams{
		UserId: "user1", Limit: 10,
	})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if page.Total != 0 || len(page.Transactions) != 0 || page.HasMore {
		t.Errorf("Expected empty page, got %+v", page)
	}
}

func TestGetTransactionStats(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")
	seedTransactions(t, service, "user1", 3, 2)

	stats, err := service.GetTransactionStats(context.Background(), "user1")
	if err != nil {
		t.Fatalf("GetTransactionStats failed: %v", err)
	}

	if stats.CurrentBalance != 28 {
		t.Errorf("Expected balance 28, got %d", stats.CurrentBalance)
	}
	if stats.LifetimeEarned != 30 || stats.LifetimeSpent != 2 {
		t.Errorf("Expected lifetimes 30/2, got %d/%d", stats.LifetimeEarned, stats.LifetimeSpent)
	}
	if stats.TotalTransactions != 5 {
		t.Errorf("Expected 5 transactions, got %d", stats.TotalTransactions)
	}
	if stats.LastEarning == nil || stats.LastEarning.Kind != models.KindGrant {
		t.Errorf("Expected last earning GRANT, got %+v", stats.LastEarning)
	}
	if stats.LastDeduction == nil || stats.LastDeduction.Kind != models.KindDeduction {
		t.Errorf("Expected last deduction, got %+v", stats.LastDeduction)
	}
}

func TestGetTransactionStats_FreshAccount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	stats, err := service.GetTransactionStats(context.Background(), "user1")
	if err != nil {
		t.Fatalf("GetTransactionStats failed: %v", err)
	}
	if stats.CurrentBalance != 0 || stats.TotalTransactions != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}
	if stats.LastEarning != nil || stats.LastDeduction != nil {
		t.Error("Expected nil last earning/deduction for fresh account")
	}
}

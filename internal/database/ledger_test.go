package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"
)

func setupTestDB(t *testing.T) (*Service, func()) {
	t.Helper()

	// A shared on-disk file, not :memory:, so every pooled connection sees
	// the same database.
	path := filepath.Join(t.TempDir(), "ledger_test.db")

	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         path,
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func createTestUser(t *testing.T, service *Service, id, name, email string) {
	t.Helper()
	if _, err := service.CreateUser(context.Background(), id, name, email); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
}

func TestGrantCredits_Basic(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	account, transaction, err := service.GrantCredits(ctx, store.GrantParams{
		UserId:      "user1",
		Amount:      100,
		Kind:        models.KindPurchase,
		Description: "Small Pack purchase",
	})
	if err != nil {
		t.Fatalf("GrantCredits failed: %v", err)
	}

	if account.Balance != 100 {
		t.Errorf("Expected balance 100, got %d", account.Balance)
	}
	if account.LifetimeEarned != 100 {
		t.Errorf("Expected lifetime earned 100, got %d", account.LifetimeEarned)
	}
	if account.LifetimeSpent != 0 {
		t.Errorf("Expected lifetime spent 0, got %d", account.LifetimeSpent)
	}
	if transaction.Amount != 100 {
		t.Errorf("Expected transaction amount 100, got %d", transaction.Amount)
	}
	if transaction.Kind != models.KindPurchase {
		t.Errorf("Expected kind PURCHASE, got %s", transaction.Kind)
	}
	if transaction.BalanceBefore != 0 || transaction.BalanceAfter != 100 {
		t.Errorf("Expected balance 0 -> 100, got %d -> %d",
			transaction.BalanceBefore, transaction.BalanceAfter)
	}
	if transaction.Id == "" {
		t.Error("Expected a transaction id")
	}
}

func TestGrantCredits_InvalidAmount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	for _, amount := range []int64{0, -50} {
		_, _, err := service.GrantCredits(ctx, store.GrantParams{
			UserId:      "user1",
			Amount:      amount,
			Kind:        models.KindGrant,
			Description: "bad grant",
		})
		if !errors.Is(err, store.ErrInvalidAmount) {
			t.Errorf("Amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	if balance, _ := service.GetBalance(ctx, "user1"); balance != 0 {
		t.Errorf("Expected balance unchanged (0), got %d", balance)
	}
}

func TestGrantCredits_InvalidKind(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	_, _, err := service.GrantCredits(context.Background(), store.GrantParams{
		UserId:      "user1",
		Amount:      100,
		Kind:        models.KindDeduction,
		Description: "grant disguised as deduction",
	})
	if !errors.Is(err, store.ErrInvalidKind) {
		t.Errorf("Expected ErrInvalidKind, got %v", err)
	}
}

func TestDeductCredits_Basic(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	if _, _, err := service.GrantCredits(ctx, store.GrantParams{
		UserId:      "user1",
		Amount:      100,
		Kind:        models.KindBonus,
		Description: "Welcome bonus",
	}); err != nil {
		t.Fatalf("GrantCredits failed: %v", err)
	}

	account, transaction, err := service.DeductCredits(ctx, store.DeductParams{
		UserId:   "user1",
		Amount:   30,
		ToolId:   "image-gen",
		ToolName: "Image Generator",
	})
	if err != nil {
		t.Fatalf("DeductCredits failed: %v", err)
	}

	if account.Balance != 70 {
		t.Errorf("Expected balance 70, got %d", account.Balance)
	}
	if account.LifetimeEarned != 100 || account.LifetimeSpent != 30 {
		t.Errorf("Expected lifetimes 100/30, got %d/%d",
			account.LifetimeEarned, account.LifetimeSpent)
	}
	if transaction.Amount != -30 {
		t.Errorf("Expected signed amount -30, got %d", transaction.Amount)
	}
	if transaction.Kind != models.KindDeduction {
		t.Errorf("Expected kind DEDUCTION, got %s", transaction.Kind)
	}
	if transaction.Metadata["tool_id"] != "image-gen" {
		t.Errorf("Expected tool_id in metadata, got %v", transaction.Metadata)
	}
}

func TestDeductCredits_InsufficientCredits(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	if _, _, err := service.GrantCredits(ctx, store.GrantParams{
		UserId:      "user1",
		Amount:      100,
		Kind:        models.KindBonus,
		Description: "Welcome bonus",
	}); err != nil {
		t.Fatalf("GrantCredits failed: %v", err)
	}
	if _, _, err := service.DeductCredits(ctx, store.DeductParams{
		UserId:   "user1",
		Amount:   30,
		ToolId:   "image-gen",
		ToolName: "Image Generator",
	}); err != nil {
		t.Fatalf("DeductCredits failed: %v", err)
	}

	// Balance is now 70; asking for 1000 must fail without changing state.
	_, _, err := service.DeductCredits(ctx, store.DeductParams{
		UserId:   "user1",
		Amount:   1000,
		ToolId:   "video-gen",
		ToolName: "Video Generator",
	})

	var insufficientErr *store.InsufficientCreditsError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("Expected InsufficientCreditsError, got %v", err)
	}
	if insufficientErr.Balance != 70 {
		t.Errorf("Expected error balance 70, got %d", insufficientErr.Balance)
	}
	if insufficientErr.Requested != 1000 {
		t.Errorf("Expected error requested 1000, got %d", insufficientErr.Requested)
	}

	balance, err := service.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 70 {
		t.Errorf("Expected balance unchanged (70), got %d", balance)
	}

	page, err := service.GetTransactionHistory(ctx, store.HistoryParams{UserId: "user1", Limit: 10})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Expected 2 transactions (no record of failed deduction), got %d", page.Total)
	}
}

func TestDeductCredits_NoAccount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	_, _, err := service.DeductCredits(context.Background(), store.DeductParams{
		UserId:   "user1",
		Amount:   10,
		ToolId:   "image-gen",
		ToolName: "Image Generator",
	})
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestRefundCredits(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	if _, _, err := service.GrantCredits(ctx, store.GrantParams{
		UserId:      "user1",
		Amount:      100,
		Kind:        models.KindPurchase,
		Description: "Small Pack purchase",
	}); err != nil {
		t.Fatalf("GrantCredits failed: %v", err)
	}
	_, deduction, err := service.DeductCredits(ctx, store.DeductParams{
		UserId:   "user1",
		Amount:   30,
		ToolId:   "image-gen",
		ToolName: "Image Generator",
	})
	if err != nil {
		t.Fatalf("DeductCredits failed: %v", err)
	}

	account, refund, err := service.RefundCredits(ctx, store.RefundParams{
		UserId:                "user1",
		Amount:                30,
		Reason:                "generation failed",
		OriginalTransactionId: deduction.Id,
	})
	if err != nil {
		t.Fatalf("RefundCredits failed: %v", err)
	}

	if account.Balance != 100 {
		t.Errorf("Expected balance restored to 100, got %d", account.Balance)
	}
	// Refunds are new earnings, not reversals: both lifetime totals grow.
	if account.LifetimeEarned != 130 {
		t.Errorf("Expected lifetime earned 130, got %d", account.LifetimeEarned)
	}
	if account.LifetimeSpent != 30 {
		t.Errorf("Expected lifetime spent 30, got %d", account.LifetimeSpent)
	}
	if refund.Kind != models.KindRefund {
		t.Errorf("Expected kind REFUND, got %s", refund.Kind)
	}
	if refund.Metadata["original_transaction_id"] != deduction.Id {
		t.Errorf("Expected original transaction id in metadata, got %v", refund.Metadata)
	}
}

func TestGrantCredits_DuplicateEventId(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	params := store.GrantParams{
		UserId:      "user1",
		Amount:      500,
		Kind:        models.KindPurchase,
		Description: "Medium Pack purchase",
		EventId:     "evt_123",
	}

	if _, _, err := service.GrantCredits(ctx, params); err != nil {
		t.Fatalf("First grant failed: %v", err)
	}

	_, _, err := service.GrantCredits(ctx, params)
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("Expected ErrDuplicateTransaction on redelivery, got %v", err)
	}

	balance, err := service.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 500 {
		t.Errorf("Expected balance 500 (no double credit), got %d", balance)
	}
}

func TestLedger_ChainContinuity(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	steps := []struct {
		grant  bool
		amount int64
	}{
		{true, 200}, {false, 50}, {true, 25}, {false, 100}, {false, 75},
	}
	for _, step := range steps {
		var err error
		if step.grant {
			_, _, err = service.GrantCredits(ctx, store.GrantParams{
				UserId: "user1", Amount: step.amount,
				Kind: models.KindGrant, Description: "admin grant",
			})
		} else {
			_, _, err = service.DeductCredits(ctx, store.DeductParams{
				UserId: "user1", Amount: step.amount,
				ToolId: "text-gen", ToolName: "Text Generator",
			})
		}
		if err != nil {
			t.Fatalf("Ledger write failed: %v", err)
		}
	}

	page, err := service.GetTransactionHistory(ctx, store.HistoryParams{UserId: "user1", Limit: 100})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(page.Transactions) != len(steps) {
		t.Fatalf("Expected %d transactions, got %d", len(steps), len(page.Transactions))
	}

	// History is newest-first; walk oldest-first to check the chain.
	for i := len(page.Transactions) - 1; i > 0; i-- {
		older := page.Transactions[i]
		newer := page.Transactions[i-1]
		if older.BalanceAfter != newer.BalanceBefore {
			t.Errorf("Chain broken: tx %s ends at %d but tx %s starts at %d",
				older.Id, older.BalanceAfter, newer.Id, newer.BalanceBefore)
		}
		if older.BalanceBefore+older.Amount != older.BalanceAfter {
			t.Errorf("Tx %s: %d + %d != %d",
				older.Id, older.BalanceBefore, older.Amount, older.BalanceAfter)
		}
	}

	account, err := service.GetOrCreateAccount(ctx, "user1")
	if err != nil {
		t.Fatalf("GetOrCreateAccount failed: %v", err)
	}
	if account.Balance != account.LifetimeEarned-account.LifetimeSpent {
		t.Errorf("Invariant broken: balance %d != earned %d - spent %d",
			account.Balance, account.LifetimeEarned, account.LifetimeSpent)
	}
	if account.Balance != 0 {
		t.Errorf("Expected final balance 0, got %d", account.Balance)
	}
}

func TestDeductCredits_Concurrent(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	ctx := context.Background()
	if _, _, err := service.GrantCredits(ctx, store.GrantParams{
		UserId:      "user1",
		Amount:      25,
		Kind:        models.KindGrant,
		Description: "stress seed",
	}); err != nil {
		t.Fatalf("GrantCredits failed: %v", err)
	}

	const workers = 40

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := service.DeductCredits(ctx, store.DeductParams{
				UserId:   "user1",
				Amount:   1,
				ToolId:   "text-gen",
				ToolName: "Text Generator",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			var insufficientErr *store.InsufficientCreditsError
			if errors.As(err, &insufficientErr) {
				insufficient++
			} else {
				t.Errorf("Unexpected error from concurrent deduction: %v", err)
			}
		}
	}

	if succeeded != 25 {
		t.Errorf("Expected exactly 25 deductions to succeed, got %d", succeeded)
	}
	if insufficient != workers-25 {
		t.Errorf("Expected %d insufficient-credit failures, got %d", workers-25, insufficient)
	}

	balance, err := service.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected final balance 0, got %d", balance)
	}
	if err := service.ReconcileBalance(ctx, "user1"); err != nil {
		t.Errorf("Reconciliation failed after concurrent writes: %v", err)
	}
}

func TestGrantCredits_ConcurrentFirstGrant(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	createTestUser(t, service, "user1", "Test User", "test@example.com")

	// All writers race on account creation; every grant must still land.
	ctx := context.Background()
	const workers = 10

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := service.GrantCredits(ctx, store.GrantParams{
				UserId:      "user1",
				Amount:      10,
				Kind:        models.KindGrant,
				Description: "racing grant",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("Concurrent grant failed: %v", err)
		}
	}

	balance, err := service.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != workers*10 {
		t.Errorf("Expected balance %d, got %d", workers*10, balance)
	}
}

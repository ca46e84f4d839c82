package main

import (
	"context"
	"flag"
	"fmt"

	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/config"
	"credit-ledger-go/internal/database"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	usersWithAccounts int
	totalCredits      int64
}

func printAccount(user common.UserInfo, dbService *database.Service, ctx context.Context) (int64, bool, error) {
	account, err := dbService.GetOrCreateAccount(ctx, user.Id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get account: %w", err)
	}

	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	common.PrintBoxSeparator(78)
	fmt.Printf("%s %-16s: %10d credits\n", common.BoxPrefix(false), "balance", account.Balance)
	fmt.Printf("%s %-16s: %10d credits\n", common.BoxPrefix(false), "lifetime earned", account.LifetimeEarned)
	fmt.Printf("%s %-16s: %10d credits (updated: %s)\n", common.BoxPrefix(true), "lifetime spent",
		account.LifetimeSpent, account.UpdatedAt.Format("2006-01-02 15:04:05"))

	return account.Balance, true, nil
}

func processUsersAndGenerateReport(ctx context.Context, users []common.UserInfo, dbService *database.Service, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, user := range users {
		stats.totalUsers++

		balance, ok, err := printAccount(user, dbService, ctx)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}

		if ok {
			stats.usersWithAccounts++
			stats.totalCredits += balance
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	verifyFlag := flag.Bool("verify", false, "Reconcile each balance against the transaction log")
	flag.Parse()

	logger.Info("Starting balance report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("CREDIT BALANCE REPORT", common.DefaultWidth)

	stats := processUsersAndGenerateReport(ctx, users, dbService, logger)

	if *verifyFlag {
		for _, user := range users {
			if err := dbService.ReconcileBalance(ctx, user.Id); err != nil {
				logger.Error("Reconciliation failed",
					zap.String("user_id", user.Id),
					zap.Error(err))
			}
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d credits across %d accounts (%d users queried)",
		stats.totalCredits, stats.usersWithAccounts, stats.totalUsers)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance report completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("accounts", stats.usersWithAccounts),
		zap.Int64("total_credits", stats.totalCredits))
}

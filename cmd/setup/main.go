package main

import (
	"context"
	"flag"

	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/config"
	"credit-ledger-go/internal/database"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// bootstrapAccounts creates a credit account for every user and grants the
// signup bonus to accounts that have never earned anything.
func bootstrapAccounts(ctx context.Context, dbService *database.Service, bonus int64) {
	users, err := dbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read users from database", zap.Error(err))
	}

	var created, granted int
	for _, user := range users {
		account, err := dbService.GetOrCreateAccount(ctx, user.Id)
		if err != nil {
			zap.L().Error("Failed to bootstrap account",
				zap.String("user_id", user.Id),
				zap.String("email", user.Email),
				zap.Error(err))
			continue
		}
		created++

		if bonus <= 0 || account.LifetimeEarned > 0 {
			continue
		}

		_, transaction, err := dbService.GrantCredits(ctx, store.GrantParams{
			UserId:      user.Id,
			Amount:      bonus,
			Kind:        models.KindBonus,
			Description: "Welcome bonus",
		})
		if err != nil {
			zap.L().Error("Failed to grant welcome bonus",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}
		granted++
		zap.L().Info("Welcome bonus granted",
			zap.String("user_id", user.Id),
			zap.String("transaction_id", transaction.Id),
			zap.Int64("credits", bonus))
	}

	zap.L().Info("Account bootstrap complete",
		zap.Int("accounts", created),
		zap.Int("bonuses_granted", granted))
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	seedFlag := flag.Bool("seed", false, "Seed demo users before bootstrapping accounts")
	bonusFlag := flag.Int64("bonus", 100, "Welcome bonus credits for brand-new accounts (0 disables)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if *seedFlag {
		cfg.Database.CreateDemoUsers = true
	}

	zap.L().Info("Setting up credit ledger database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	bootstrapAccounts(ctx, dbService, *bonusFlag)

	zap.L().Info("Setup complete")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/config"
	"credit-ledger-go/internal/database"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func validateInput(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email %q does not look like an email address", email)
	}
	return nil
}

func createUser(ctx context.Context, dbService *database.Service, name, email string) (*models.User, error) {
	existing, err := dbService.GetUserByEmail(ctx, email)
	if err == nil {
		zap.L().Info("User already exists",
			zap.String("id", existing.Id),
			zap.String("email", existing.Email))
		return existing, nil
	}

	user, err := dbService.CreateUser(ctx, uuid.New().String(), name, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func grantWelcomeBonus(ctx context.Context, dbService *database.Service, user *models.User, bonus int64) {
	account, err := dbService.GetOrCreateAccount(ctx, user.Id)
	if err != nil {
		zap.L().Error("Failed to create credit account", zap.String("user_id", user.Id), zap.Error(err))
		return
	}

	if account.LifetimeEarned > 0 {
		zap.L().Info("User already received credits, skipping welcome bonus",
			zap.String("user_id", user.Id),
			zap.Int64("balance", account.Balance))
		return
	}

	_, transaction, err := dbService.GrantCredits(ctx, store.GrantParams{
		UserId:      user.Id,
		Amount:      bonus,
		Kind:        models.KindBonus,
		Description: "Welcome bonus",
	})
	if err != nil {
		zap.L().Error("Failed to grant welcome bonus", zap.String("user_id", user.Id), zap.Error(err))
		return
	}

	zap.L().Info("Welcome bonus granted",
		zap.String("user_id", user.Id),
		zap.String("transaction_id", transaction.Id),
		zap.Int64("credits", bonus),
		zap.Int64("balance", transaction.BalanceAfter))
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Full name of the user (required)")
	emailFlag := flag.String("email", "", "Email address of the user (required)")
	bonusFlag := flag.Int64("bonus", 0, "Welcome bonus credits to grant (0 disables)")
	flag.Parse()

	if err := validateInput(*nameFlag, *emailFlag); err != nil {
		flag.Usage()
		zap.L().Fatal("Invalid input", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	user, err := createUser(ctx, dbService, strings.TrimSpace(*nameFlag), strings.TrimSpace(*emailFlag))
	if err != nil {
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	fmt.Printf("User ready: %s <%s> (id: %s)\n", user.Name, user.Email, user.Id)

	if *bonusFlag > 0 {
		grantWelcomeBonus(ctx, dbService, user, *bonusFlag)
	}
}

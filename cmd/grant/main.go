package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"credit-ledger-go/internal/api"
	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/config"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Email of the user to credit (required)")
	amountFlag := flag.Int64("amount", 0, "Number of credits (required, positive)")
	kindFlag := flag.String("kind", "GRANT", "Transaction kind: PURCHASE, SUBSCRIPTION, GRANT, BONUS or REFUND")
	descriptionFlag := flag.String("description", "", "Human-readable description (required unless -refund)")
	refundFlag := flag.Bool("refund", false, "Record the grant as a refund")
	reasonFlag := flag.String("reason", "", "Refund reason (required with -refund)")
	originalTxFlag := flag.String("original-tx", "", "Original transaction id being refunded (optional)")
	flag.Parse()

	if *emailFlag == "" || *amountFlag <= 0 {
		flag.Usage()
		zap.L().Fatal("Both -email and a positive -amount are required")
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

	ledger := api.NewLedgerService(dbService)

	user, err := dbService.GetUserByEmail(ctx, *emailFlag)
	if err != nil {
		zap.L().Fatal("User lookup failed", zap.String("email", *emailFlag), zap.Error(err))
	}

	var account *models.CreditAccount
	var transaction *models.CreditTransaction

	if *refundFlag {
		if *reasonFlag == "" {
			flag.Usage()
			zap.L().Fatal("-reason is required with -refund")
		}
		account, transaction, err = ledger.RefundCredits(ctx, store.RefundParams{
			UserId:                user.Id,
			Amount:                *amountFlag,
			Reason:                *reasonFlag,
			OriginalTransactionId: *originalTxFlag,
		})
	} else {
		if *descriptionFlag == "" {
			flag.Usage()
			zap.L().Fatal("-description is required")
		}
		kind := models.TransactionKind(strings.ToUpper(*kindFlag))
		account, transaction, err = ledger.GrantCredits(ctx, store.GrantParams{
			UserId:      user.Id,
			Amount:      *amountFlag,
			Kind:        kind,
			Description: *descriptionFlag,
			Metadata:    map[string]string{"granted_by": "admin-cli"},
		})
	}
	if err != nil {
		zap.L().Fatal("Grant failed", zap.String("user_id", user.Id), zap.Error(err))
	}

	fmt.Printf("Granted %d credits to %s <%s>\n", *amountFlag, user.Name, user.Email)
	fmt.Printf("  transaction: %s (%s)\n", transaction.Id, transaction.Kind)
	fmt.Printf("  balance:     %d -> %d\n", transaction.BalanceBefore, transaction.BalanceAfter)
	fmt.Printf("  lifetime:    earned %d, spent %d\n", account.LifetimeEarned, account.LifetimeSpent)
}

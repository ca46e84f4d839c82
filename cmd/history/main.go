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

func printTransaction(transaction models.CreditTransaction, isLast bool) {
	sign := "+"
	if transaction.Amount < 0 {
		sign = ""
	}
	fmt.Printf("%s %s  %-12s %s%d (%d -> %d)  %s\n",
		common.BoxPrefix(isLast),
		transaction.CreatedAt.Format("2006-01-02 15:04:05"),
		transaction.Kind,
		sign, transaction.Amount,
		transaction.BalanceBefore, transaction.BalanceAfter,
		transaction.Description)
}

func printHistory(user common.UserInfo, page *models.TransactionPage) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  Transactions: %d total, page %d of %d\n", page.Total, page.Page, page.TotalPages)
	common.PrintBoxSeparator(78)

	if len(page.Transactions) == 0 {
		fmt.Printf("%s (no transactions)\n", common.BoxPrefix(true))
		return
	}
	for i, transaction := range page.Transactions {
		printTransaction(transaction, i == len(page.Transactions)-1)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	limitFlag := flag.Int("limit", 20, "Transactions per page")
	offsetFlag := flag.Int("offset", 0, "Page offset")
	kindFlag := flag.String("kind", "", "Filter by transaction kind (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	ledger := api.NewLedgerService(dbService)

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("CREDIT TRANSACTION HISTORY", common.DefaultWidth)

	var shown int
	for _, user := range users {
		page, err := ledger.GetTransactionHistory(ctx, store.HistoryParams{
			UserId: user.Id,
			Limit:  *limitFlag,
			Offset: *offsetFlag,
			Kind:   models.TransactionKind(strings.ToUpper(*kindFlag)),
		})
		if err != nil {
			logger.Error("Failed to get history",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}
		printHistory(user, page)
		shown += len(page.Transactions)
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d transactions shown across %d users", shown, len(users)), common.DefaultWidth)
}

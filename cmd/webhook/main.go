package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"credit-ledger-go/internal/api"
	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/config"
	"credit-ledger-go/internal/payments"

	"go.uber.org/zap"
)

func main() {
	listenFlag := flag.String("listen", "", "Listen address override (default: SERVER_LISTEN_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting credit ledger webhook server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	ledger := api.NewLedgerService(services.DbService)
	processor := payments.NewProcessor(services.DbService, services.Pricing)
	router := api.NewRouter(ledger, processor.HandleWebhook)

	listenAddr := cfg.Server.ListenAddr
	if *listenFlag != "" {
		listenAddr = *listenFlag
	}

	server := &http.Server{
		Addr:        listenAddr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("Listening for webhook events", zap.String("addr", listenAddr))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server failed", zap.Error(err))
		}
	case <-sigChan:
		zap.L().Info("Shutdown signal received, draining connections...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
		} else {
			zap.L().Info("Server stopped gracefully")
		}
	}
}

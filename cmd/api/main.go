package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"healing-commerce/internal/client"
	"healing-commerce/internal/config"
	"healing-commerce/internal/handler"
	"healing-commerce/internal/repository"
	"healing-commerce/internal/server"
	"healing-commerce/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := client.InitMysqlClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	stripeClient := client.NewStripeClient(&cfg.Stripe)
	mailClient := client.NewMailClient(&cfg.SMTP, cfg.AppURL)

	payosClients := make(map[string]client.PayOSClient)
	for id, account := range cfg.PayOS.Accounts() {
		payosClients[id] = client.NewPayOSClient(cfg.PayOS.BaseAPIURL, id, account)
	}

	orderRepo := repository.NewOrderRepository(db)
	entitlementRepo := repository.NewEntitlementRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	grantService := service.NewGrantService(entitlementRepo, mailClient, logger)
	checkoutService := service.NewCheckoutService(
		stripeClient, payosClients, orderRepo, cfg.AppURL, cfg.Bank, logger,
	)

	payosProcessor := service.NewPayOSProcessor(payosClients[config.DefaultPayOSAccountID])
	payosConfirmation := service.NewConfirmationService(
		payosProcessor, orderRepo, webhookEventRepo, grantService, logger,
	)
	stripeConfirmation := service.NewConfirmationService(
		service.NewStripeProcessor(stripeClient), orderRepo, webhookEventRepo, grantService, logger,
	)

	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	payosHandler := handler.NewPayOSHandler(payosConfirmation, checkoutService, cfg.AppURL, logger)
	stripeHandler := handler.NewStripeHandler(stripeConfirmation, logger)
	accountHandler := handler.NewAccountHandler(grantService)
	debugHandler := handler.NewDebugHandler(orderRepo, cfg.AppURL+"/api/payos/webhook")

	srv := server.NewServer(
		cfg.Auth.JWTSecret,
		checkoutHandler,
		payosHandler,
		stripeHandler,
		accountHandler,
		debugHandler,
		logger,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	logger.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		logger.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

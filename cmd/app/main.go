// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-subscription-billing/internal/config"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
	"telegram-subscription-billing/internal/infra/catalog"
	pg "telegram-subscription-billing/internal/infra/db/postgres"
	"telegram-subscription-billing/internal/infra/logging"
	"telegram-subscription-billing/internal/infra/metrics"
	pay "telegram-subscription-billing/internal/infra/payment"
	red "telegram-subscription-billing/internal/infra/redis"
	"telegram-subscription-billing/internal/infra/sched"
	tele "telegram-subscription-billing/internal/infra/telegram"
	"telegram-subscription-billing/internal/infra/web"
	"telegram-subscription-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txManager := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewUserRepo(pool), redisClient, cfg.Redis.TTL)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	eventRepo := pg.NewPaymentEventRepo(pool)
	failedRepo := pg.NewFailedWebhookRepo(pool)

	// ---- Telegram bot client ----
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	notifier := tele.NewAdminNotifier(bot, cfg.Bot.AdminIDs, logger)

	// ---- Payment providers ----
	yoo := pay.NewYooKassaGateway(cfg.Payment.YooKassa.ShopID, cfg.Payment.YooKassa.SecretKey, cfg.Payment.YooKassa.BaseURL)
	stars := pay.NewStarsGateway(bot)
	gift := pay.NewGiftProvider()
	providers := map[model.ProviderID]adapter.PaymentProvider{
		yoo.ID():   yoo,
		stars.ID(): stars,
		gift.ID():  gift,
	}

	// ---- Catalog ----
	productCatalog, err := catalog.NewStaticCatalog(cfg.Products)
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, txManager, logger)
	paymentUC := usecase.NewPaymentUseCase(payRepo, eventRepo, productCatalog, providers, subUC, txManager, logger)
	lifecycleUC := usecase.NewLifecycleUseCase(subRepo, userRepo, productCatalog, paymentUC, providers, txManager, notifier, logger)
	statsUC := usecase.NewStatsUseCase(payRepo, subRepo, logger)

	// ---- Background workers ----
	renewalWorker := sched.NewRenewalWorker(cfg.Jobs.RenewalInterval, cfg.Jobs.RenewalHorizon, lifecycleUC, logger)
	go func() { _ = renewalWorker.Run(ctx) }()
	expiryWorker := sched.NewExpiryWorker(cfg.Jobs.ExpiryInterval, lifecycleUC, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	// ---- HTTP server (webhooks, ops, metrics) ----
	server := web.NewServer(cfg, paymentUC, statsUC, failedRepo, notifier, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

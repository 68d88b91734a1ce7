// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-lesson-market/internal/application"
	"telegram-lesson-market/internal/config"
	pg "telegram-lesson-market/internal/infra/db/postgres"
	"telegram-lesson-market/internal/infra/logging"
	"telegram-lesson-market/internal/infra/metrics"
	red "telegram-lesson-market/internal/infra/redis"
	"telegram-lesson-market/internal/infra/sched"
	tele "telegram-lesson-market/internal/infra/telegram"
	"telegram-lesson-market/internal/infra/web"
	"telegram-lesson-market/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Str("version", version).Str("commit", commit).Msg("starting lesson market")
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	pg.StartPoolStatsReporter(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	dedupe := red.NewChargeDedupe(redisClient, 0)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	purchaseRepo := pg.NewPurchaseRepo(pool)
	promoRepo := pg.NewPromoCodeRepo(pool)
	withdrawRepo := pg.NewWithdrawRepo(pool)
	catalogRepo := pg.NewCatalogRepo(pool)
	auditRepo := pg.NewAuditLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	audit := usecase.NewAuditRecorder(auditRepo, logger)
	promoUC := usecase.NewPromoUseCase(promoRepo, tm, cfg.Billing, logger)
	paymentUC := usecase.NewPaymentUseCase(purchaseRepo, catalogRepo, promoUC, tm, audit, cfg.Billing, logger)
	withdrawUC := usecase.NewWithdrawUseCase(withdrawRepo, purchaseRepo, tm, audit, cfg.Billing, logger)
	statsUC := usecase.NewStatsUseCase(purchaseRepo, logger)
	reconcileUC := usecase.NewReconcileUseCase(paymentUC, catalogRepo, dedupe, cfg.Billing, logger)

	// ---- Facade & Telegram ----
	facade := application.NewBotFacade(catalogRepo, paymentUC, promoUC, withdrawUC, statsUC)
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, reconcileUC, rateLimiter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	adminSrv := web.NewServer(paymentUC, promoUC, withdrawUC, statsUC, auditRepo, auth, cfg.Admin.Password, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           adminSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("admin API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin API server error")
		}
	}()

	// ---- Sweepers ----
	expiryWorker := sched.NewExpiryWorker(cfg.Scheduler.SweepInterval, cfg.Scheduler.PaymentTimeout, paymentUC, locker, logger)
	go func() { _ = expiryWorker.Run(ctx) }()
	promoWorker := sched.NewPromoSweepWorker(cfg.Scheduler.PromoSweepPeriod, promoUC, locker, logger)
	go func() { _ = promoWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	botAdapter.StopPolling()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin API shutdown")
	}
}

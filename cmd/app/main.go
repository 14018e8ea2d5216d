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

	"examprep-marketplace/internal/config"
	pg "examprep-marketplace/internal/infra/db/postgres"
	"examprep-marketplace/internal/infra/logging"
	"examprep-marketplace/internal/infra/metrics"
	pay "examprep-marketplace/internal/infra/payment"
	red "examprep-marketplace/internal/infra/redis"
	"examprep-marketplace/internal/infra/sched"
	"examprep-marketplace/internal/infra/web"
	"examprep-marketplace/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// Schema is initialized explicitly before serving traffic.
	if err := pg.InitSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema init failed")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	orderRepo := pg.NewOrderRepo(pool)
	grantRepo := pg.NewGrantRepo(pool)
	batchRepo := pg.NewBatchRepoCacheDecorator(pg.NewBatchRepo(pool), redisClient, cfg.Redis.CacheTTL, logger)

	// ---- Payment gateway ----
	gateway := pay.NewRazorpayGateway(cfg.Payment.Razorpay.KeyID, cfg.Payment.Razorpay.KeySecret)

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(batchRepo, orderRepo, grantRepo, gateway, tm, logger)
	confirmationUC := usecase.NewConfirmationUseCase(orderRepo, grantRepo, batchRepo, tm, cfg.Payment.Razorpay.WebhookSecret, logger)
	accessUC := usecase.NewAccessUseCase(grantRepo)

	// ---- HTTP server ----
	sessions := web.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	srv := web.NewServer(
		checkoutUC, confirmationUC, accessUC,
		sessions, limiter, cfg.RateLimit.CheckoutPerMinute,
		cfg.Payment.Razorpay.KeyID, cfg.Payment.Razorpay.KeySecret,
		logger,
	)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Sweep workers ----
	expiry := sched.NewExpiryWorker(cfg.Sweep.GrantExpiryInterval, grantRepo, logger)
	go func() { _ = expiry.Run(ctx) }()

	reconciler := sched.NewOrderReconciler(orderRepo, cfg.Sweep.StaleOrderInterval, cfg.Sweep.StaleOrderAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

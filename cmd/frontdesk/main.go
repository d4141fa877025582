// Package main запускает HTTP-сервер стойки выезда.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/frontdesk-checkout/internal/backend"
	"github.com/mmeshcher/frontdesk-checkout/internal/checkout"
	"github.com/mmeshcher/frontdesk-checkout/internal/config"
	"github.com/mmeshcher/frontdesk-checkout/internal/handler"
	"github.com/mmeshcher/frontdesk-checkout/internal/idempotency"
	"github.com/mmeshcher/frontdesk-checkout/internal/metrics"
	"github.com/mmeshcher/frontdesk-checkout/internal/middleware"
	"github.com/mmeshcher/frontdesk-checkout/internal/pricing"
	"github.com/mmeshcher/frontdesk-checkout/internal/repository"
	"github.com/mmeshcher/frontdesk-checkout/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	policy, err := pricing.LoadPolicyFile(cfg.PolicyFile)
	if err != nil {
		sugar.Fatalw("pricing policy error", "file", cfg.PolicyFile, "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendClient := backend.NewClient(cfg.BackendAddress)
	if cfg.BackendAddress == "" {
		sugar.Warn("backend address is not set, checkout actions will fail")
	}

	var (
		remote service.PolicyPusher
		pricer pricing.RemotePricer
	)
	if cfg.PricingAddress != "" {
		pricingClient := backend.NewClient(cfg.PricingAddress)
		remote = pricingClient
		pricer = pricingClient
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	}

	var idem middleware.IdempotencyStore
	if cfg.RedisURL != "" {
		store, err := idempotency.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer store.Close()
		idem = store
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	quoter := pricing.NewQuoter(policy, pricer, cfg.PricingTimeout, logger.Named("pricing"))

	desk, err := checkout.New(backendClient, backendClient, logger.Named("checkout"), checkout.Options{
		LateFee: policy.Fees.LatePickup,
	})
	if err != nil {
		sugar.Fatalw("checkout initialization error", "error", err.Error())
	}

	svc := service.NewService(repo, quoter, desk, remote, m, logger)
	defer svc.Close()

	if err := svc.RestorePolicy(ctx); err != nil {
		sugar.Warnw("failed to restore stored pricing policy", "error", err.Error())
	}

	h := handler.NewHandler(svc, desk, logger, idem, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.StartPolicySync(ctx, cfg.PolicySyncInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting front desk checkout server",
			"addr", cfg.RunAddress,
			"policy_version", quoter.Policy().Version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

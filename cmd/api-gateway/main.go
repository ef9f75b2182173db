package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/crash-game-platform/internal/gateway"
	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
	"github.com/radieske/crash-game-platform/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New("api-gateway", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// targets
	walletURL := cfg.WalletURL
	if walletURL == "" {
		walletURL = "http://localhost:8082"
	}
	h, err := gateway.NewRouter(gateway.Targets{Crash: cfg.CrashURL, Wallet: walletURL}, log)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, srv, log, "api-gateway") })
	g.Go(func() error { return metrics.Serve(gctx, metrics.NewServer(cfg.MetricsPort), log, "metrics/health") })
	if err := g.Wait(); err != nil {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

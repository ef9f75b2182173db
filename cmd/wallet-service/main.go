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

	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/db"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
	"github.com/radieske/crash-game-platform/internal/shared/metrics"
	"github.com/radieske/crash-game-platform/internal/wallet"
	whttp "github.com/radieske/crash-game-platform/internal/wallet-service/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	// Inicializa logger estruturado
	log, err := logger.New("wallet-service", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wallet-service"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Conexão com Postgres para operações de carteira
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	repo := wallet.NewPostgres(pg)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("wallet schema", zap.Error(err))
	}
	api := whttp.NewServer(log, repo)

	// Servidor HTTP público (API de wallet)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8082
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Servidor de métricas e health check, ex: 9098
	metricsSrv := metrics.NewServer(cfg.MetricsPort, metrics.Check{Name: "postgres", Fn: pg.PingContext})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, metricsSrv, log, "metrics/health") })
	g.Go(func() error { return metrics.Serve(gctx, apiSrv, log, "api") })
	if err := g.Wait(); err != nil {
		log.Fatal("wallet-service", zap.Error(err))
	}
}

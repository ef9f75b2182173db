package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/crash-game-platform/internal/auditor"
	"github.com/radieske/crash-game-platform/internal/crash/fairness"
	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
	"github.com/radieske/crash-game-platform/internal/shared/metrics"
)

var (
	roundsVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auditor_rounds_verified_total",
		Help: "rodadas conferidas sem divergência",
	})
	roundMismatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_mismatches_total",
		Help: "divergências encontradas por motivo",
	}, []string{"reason"})
	auditErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_errors_total",
		Help: "erros por etapa (read, decode)",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(roundsVerified, roundMismatches, auditErrors)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New("round-auditor", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Kafka consumer: cada réplica do auditor divide as partições do grupo
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRoundSettled, "round-auditor")
	defer reader.Close()

	cons := &auditor.Consumer{
		Log:    log,
		Reader: reader,
		Params: fairness.Params{
			Salt:            cfg.Crash.FairnessSalt,
			HouseEdgeModulo: cfg.Crash.HouseEdgeModulo,
		},
		OnVerified: roundsVerified.Inc,
		OnMismatch: func(reason string) { roundMismatches.WithLabelValues(reason).Inc() },
		OnError:    func(stage string) { auditErrors.WithLabelValues(stage).Inc() },
	}

	log.Info("round-auditor started", zap.String("consume", cfg.TopicRoundSettled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cons.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, metrics.NewServer(cfg.MetricsPort), log, "metrics/health") })
	if err := g.Wait(); err != nil {
		log.Fatal("round-auditor", zap.Error(err))
	}
}

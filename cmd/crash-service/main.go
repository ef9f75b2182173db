package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/crash-game-platform/internal/crash/engine"
	"github.com/radieske/crash-game-platform/internal/crash/fairness"
	"github.com/radieske/crash-game-platform/internal/crash/history"
	httpapi "github.com/radieske/crash-game-platform/internal/crash/http"
	cmetrics "github.com/radieske/crash-game-platform/internal/crash/metrics"
	"github.com/radieske/crash-game-platform/internal/crash/producer"
	"github.com/radieske/crash-game-platform/internal/crash/pubsub"
	"github.com/radieske/crash-game-platform/internal/crash/ws"
	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	"github.com/radieske/crash-game-platform/internal/shared/cache"
	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/db"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
	"github.com/radieske/crash-game-platform/internal/shared/metrics"
	"github.com/radieske/crash-game-platform/internal/wallet"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// walletService é o que o crash-service usa da carteira (motor + /api/balance)
type walletService interface {
	engine.Wallet
	httpapi.Balances
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	log, err := logger.New("crash-service", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "crash-service"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := cmetrics.New(prometheus.DefaultRegisterer)
	checks := []metrics.Check{}

	// histórico de rodadas (postgres ou sqlite)
	hdb, err := db.Connect(cfg.HistoryDriver, cfg.HistoryDSN)
	if err != nil {
		log.Fatal("history db connect", zap.String("driver", cfg.HistoryDriver), zap.Error(err))
	}
	defer hdb.Close()
	sqlStore := history.NewSQLStore(hdb, cfg.HistoryDriver, cfg.HistoryPageMax)
	if err := sqlStore.EnsureSchema(ctx); err != nil {
		log.Fatal("history schema", zap.Error(err))
	}
	store, err := history.NewCached(sqlStore, cfg.HistoryCache)
	if err != nil {
		log.Fatal("history cache", zap.Error(err))
	}
	checks = append(checks, metrics.Check{Name: "history", Fn: sqlStore.Ping})

	lastID, err := sqlStore.LastRoundID(ctx)
	if err != nil {
		log.Fatal("last round id", zap.Error(err))
	}

	writer := history.NewWriter(store, log, 256)
	writer.OnWritten = func(history.Round) { m.HistoryWrite("ok") }
	writer.OnFailed = func(history.Round, error) { m.HistoryWrite("failed") }
	writer.OnDropped = func(history.Round) { m.HistoryWrite("dropped") }

	// carteira: serviço remoto se WALLET_URL estiver definido, senão postgres local
	var wal walletService
	if cfg.WalletURL != "" {
		wal = wallet.NewClient(cfg.WalletURL)
		log.Info("using remote wallet", zap.String("url", cfg.WalletURL))
	} else {
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("wallet postgres connect", zap.Error(err))
		}
		defer pg.Close()
		pw := wallet.NewPostgres(pg)
		if err := pw.EnsureSchema(ctx); err != nil {
			log.Fatal("wallet schema", zap.Error(err))
		}
		wal = pw
		checks = append(checks, metrics.Check{Name: "postgres", Fn: pg.PingContext})
	}

	// hub WebSocket local; o estado chega pelo Redis ou direto do motor
	hub := ws.NewHub(log, allowOrigin(cfg.WSAllowedOrigins))
	hub.OnDropped = func() { m.Broadcast("dropped") }

	var offer func(engine.Snapshot)
	var broadcaster *pubsub.RedisBroadcaster
	switch cfg.BroadcastMode {
	case "direct":
		offer = func(s engine.Snapshot) { hub.BroadcastJSON(s) }
	default:
		rdb, err := cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected")
		checks = append(checks, metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})

		broadcaster = pubsub.NewRedisBroadcaster(rdb, log, cfg.RedisPubSubChannel, cfg.RedisStateKey)
		broadcaster.OnPublished = func() { m.Broadcast("ok") }
		broadcaster.OnError = func() { m.Broadcast("error") }
		offer = func(s engine.Snapshot) { broadcaster.Offer(s) }
		ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, cfg.RedisStateKey, hub, log)
	}

	// eventos de domínio no Kafka
	var publisher *producer.KafkaPublisher
	if cfg.EventsEnabled {
		publisher = producer.NewKafkaPublisher(cfg.KafkaBrokers, producer.Topics{
			RoundStarted: cfg.TopicRoundStarted,
			RoundSettled: cfg.TopicRoundSettled,
			BetPlaced:    cfg.TopicBetPlaced,
			BetCancelled: cfg.TopicBetCancelled,
			BetCashedOut: cfg.TopicBetCashedOut,
		}, log, 1024)
		defer publisher.Close()
		publisher.OnPublished = func(topic string) { m.Event(topic, "ok") }
		publisher.OnError = func(topic string) { m.Event(topic, "error") }
		publisher.OnDropped = func(topic string) { m.Event(topic, "dropped") }
	}

	fp := fairness.NewProvider(fairness.Params{
		Salt:            cfg.Crash.FairnessSalt,
		HouseEdgeModulo: cfg.Crash.HouseEdgeModulo,
	})
	eng, err := engine.New(engine.Config{
		WaitingDuration:  cfg.Crash.WaitingDuration,
		CooldownDuration: cfg.Crash.CooldownDuration,
		TickInterval:     cfg.Crash.TickInterval,
		GrowthRate:       cfg.Crash.GrowthRate,
		FirstRoundID:     lastID + 1,
	}, log, wal, fp, engine.WithHooks(hooks(m, writer, publisher, offer)))
	if err != nil {
		log.Fatal("engine init", zap.Error(err))
	}
	log.Info("crash engine ready", zap.Int64("first_round_id", lastID+1))

	api := &httpapi.API{
		Log:      log,
		Engine:   eng,
		History:  store,
		Wallet:   wal,
		Fairness: fp.Params(),
		WS:       hub.HandleWS,
		PageMax:  cfg.HistoryPageMax,
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewServer(cfg.MetricsPort, checks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := eng.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return writer.Run(gctx) })
	if publisher != nil {
		g.Go(func() error { return publisher.Run(gctx) })
	}
	if broadcaster != nil {
		g.Go(func() error { return broadcaster.Run(gctx) })
	}
	g.Go(func() error { return metrics.Serve(gctx, apiSrv, log, "api") })
	g.Go(func() error { return metrics.Serve(gctx, metricsSrv, log, "metrics/health") })

	if err := g.Wait(); err != nil {
		log.Error("crash-service stopped with error", zap.Error(err))
		return
	}
	log.Info("crash-service stopped")
}

// hooks liga os eventos do motor a métricas, histórico, Kafka e broadcast
func hooks(m *cmetrics.Metrics, w *history.Writer, k *producer.KafkaPublisher, offer func(engine.Snapshot)) engine.Hooks {
	h := engine.Hooks{
		OnSnapshot: func(s engine.Snapshot) {
			m.Multiplier(s.Multiplier)
			offer(s)
		},
		OnRoundStarted: m.RoundStarted,
		OnRoundSettled: func(r history.Round) {
			m.RoundSettled(r)
			w.Enqueue(r)
		},
		OnBetPlaced:    m.BetPlaced,
		OnBetCancelled: m.BetCancelled,
		OnCashOut:      m.CashOut,
		OnRejected:     func(op string, code apperr.Code) { m.Rejected(op, code) },
		OnCreditFailed: func(f engine.CreditFailure) { m.CreditFailed(f.Kind) },
	}
	if k == nil {
		return h
	}
	h.OnRoundStarted = func(e events.RoundStarted) {
		m.RoundStarted(e)
		k.RoundStarted(e)
	}
	h.OnRoundSettled = func(r history.Round) {
		m.RoundSettled(r)
		w.Enqueue(r)
		k.RoundSettled(r)
	}
	h.OnBetPlaced = func(e events.BetPlaced) {
		m.BetPlaced(e)
		k.BetPlaced(e)
	}
	h.OnBetCancelled = func(e events.BetCancelled) {
		m.BetCancelled(e)
		k.BetCancelled(e)
	}
	h.OnCashOut = func(e events.BetCashedOut) {
		m.CashOut(e)
		k.BetCashedOut(e)
	}
	return h
}

// allowOrigin aceita qualquer origem quando a lista está vazia
func allowOrigin(list string) func(r *http.Request) bool {
	allowed := map[string]struct{}{}
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		_, ok := allowed[r.Header.Get("Origin")]
		return ok
	}
}

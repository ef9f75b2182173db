// Package engine contém o motor da rodada de crash: agenda o ciclo
// waiting -> running -> crashed, mantém o livro de apostas da rodada ativa e
// expõe snapshots somente leitura.
//
// Existe um único dono do estado (Engine.mu). O loop de ticks e as chamadas de
// aposta/cash-out só seguram o lock por seções curtas; chamadas à carteira e
// callbacks (Hooks) acontecem fora dele, então o tick nunca espera um cliente.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash/fairness"
	"github.com/radieske/crash-game-platform/internal/crash/history"
	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

var ErrAlreadyRunning = errors.New("engine already running")

// Config define os tempos fixos da máquina de estados
type Config struct {
	WaitingDuration  time.Duration
	CooldownDuration time.Duration
	TickInterval     time.Duration
	GrowthRate       float64 // por milissegundo
	FirstRoundID     int64
	CreditRetries    uint // tentativas de crédito (payout/estorno) antes de desistir
}

// Wallet é o serviço de saldo usado pelo livro de apostas
type Wallet interface {
	Debit(ctx context.Context, username string, cents int64, ref string) error
	Credit(ctx context.Context, username string, cents int64, ref string) error
}

// Hooks são chamados fora do lock, na goroutine que causou o evento.
// Devem retornar rápido (enfileirar, incrementar métrica); nunca bloquear.
type Hooks struct {
	OnSnapshot     func(Snapshot)
	OnRoundStarted func(events.RoundStarted)
	OnRoundSettled func(history.Round)
	OnBetPlaced    func(events.BetPlaced)
	OnBetCancelled func(events.BetCancelled)
	OnCashOut      func(events.BetCashedOut)
	OnRejected     func(op string, code apperr.Code)
	// crédito devido que falhou; a aposta precisa de reconciliação
	OnCreditFailed func(CreditFailure)
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithHooks(h Hooks) Option { return func(e *Engine) { e.hooks = h } }

type Engine struct {
	cfg    Config
	log    *zap.Logger
	wallet Wallet
	fair   *fairness.Provider
	clock  Clock
	hooks  Hooks

	mu    sync.Mutex
	round *round

	snap    atomic.Pointer[Snapshot]
	running atomic.Bool
}

// New cria o motor já com a primeira rodada aberta em waiting
func New(cfg Config, log *zap.Logger, w Wallet, fp *fairness.Provider, opts ...Option) (*Engine, error) {
	if cfg.TickInterval <= 0 || cfg.GrowthRate <= 0 {
		return nil, fmt.Errorf("invalid engine config: tick=%s rate=%v", cfg.TickInterval, cfg.GrowthRate)
	}
	if cfg.FirstRoundID <= 0 {
		cfg.FirstRoundID = 1
	}
	if cfg.CreditRetries == 0 {
		cfg.CreditRetries = 5
	}
	e := &Engine{
		cfg:    cfg,
		log:    log,
		wallet: w,
		fair:   fp,
		clock:  realClock{},
	}
	for _, opt := range opts {
		opt(e)
	}

	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.openRoundLocked(now, cfg.FirstRoundID); err != nil {
		return nil, err
	}
	e.snap.Store(e.snapshotLocked(now))
	return e, nil
}

// Run executa o loop de ticks até o contexto ser cancelado.
// Só uma instância do loop pode rodar por Engine.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.log.Info("crash engine started",
		zap.Duration("tick", e.cfg.TickInterval),
		zap.Duration("waiting", e.cfg.WaitingDuration),
		zap.Duration("cooldown", e.cfg.CooldownDuration),
	)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("crash engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.advance(e.clock.Now())
		}
	}
}

// Snapshot retorna o estado do último tick (ou da última aposta) aplicado
func (e *Engine) Snapshot() Snapshot {
	return *e.snap.Load()
}

// View retorna o snapshot mais a aposta do próprio jogador, sem expor as demais
func (e *Engine) View(username string) View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{Snapshot: *e.snap.Load()}
	if e.round.id != v.RoundID {
		return v
	}
	if b, ok := e.round.bets[username]; ok {
		v.HasBet = true
		v.HasCashedOut = b.CashedOut
		v.BetAmountCents = b.AmountCents
		v.CashoutMultiplier = b.CashoutMultiplier
		v.PayoutCents = b.PayoutCents
	}
	return v
}

// advance aplica um tick: waiting expira, multiplicador sobe, crash, nova rodada
func (e *Engine) advance(now time.Time) {
	var (
		started *events.RoundStarted
		settled *history.Round
	)

	e.mu.Lock()
	r := e.round
	switch r.status {
	case StatusWaiting:
		if !now.Before(r.bettingEndsAt) {
			r.status = StatusRunning
			r.startedAt = now
			r.multiplier = 1
			started = &events.RoundStarted{
				RoundID:            r.id,
				SeedCommitmentHash: r.seedHash,
				BetsCount:          len(r.bets),
				StartedAt:          now,
			}
		}
	case StatusRunning:
		m := MultiplierAt(now.Sub(r.startedAt), e.cfg.GrowthRate)
		if m >= r.crashPoint {
			e.crashLocked(now)
			rec := r.record()
			settled = &rec
		} else if m > r.multiplier {
			r.multiplier = m
		}
	case StatusCrashed:
		if !now.Before(r.nextRoundAt) {
			if err := e.openRoundLocked(now, r.id+1); err != nil {
				// tenta de novo no próximo tick
				e.log.Error("open round failed", zap.Int64("round_id", r.id+1), zap.Error(err))
			}
		}
	}
	snap := e.snapshotLocked(now)
	e.snap.Store(snap)
	e.mu.Unlock()

	if started != nil {
		e.log.Info("round running", zap.Int64("round_id", started.RoundID), zap.Int("bets", started.BetsCount))
		if e.hooks.OnRoundStarted != nil {
			e.hooks.OnRoundStarted(*started)
		}
	}
	if settled != nil {
		e.log.Info("round crashed",
			zap.Int64("round_id", settled.RoundID),
			zap.Float64("crash_point", settled.CrashPoint),
			zap.Int("bets", len(settled.Bets)),
		)
		if e.hooks.OnRoundSettled != nil {
			e.hooks.OnRoundSettled(*settled)
		}
	}
	if e.hooks.OnSnapshot != nil {
		e.hooks.OnSnapshot(*snap)
	}
}

// crashLocked finaliza a rodada: revela a seed e zera apostas não sacadas
func (e *Engine) crashLocked(now time.Time) {
	r := e.round
	r.status = StatusCrashed
	r.multiplier = r.crashPoint
	r.crashedAt = now
	r.nextRoundAt = now.Add(e.cfg.CooldownDuration)
	for _, b := range r.bets {
		if !b.CashedOut {
			b.PayoutCents = 0
		}
	}
}

// openRoundLocked cria a próxima rodada com o compromisso já fixado
func (e *Engine) openRoundLocked(now time.Time, id int64) error {
	c, err := e.fair.NewCommitment()
	if err != nil {
		return fmt.Errorf("new commitment: %w", err)
	}
	e.round = &round{
		id:            id,
		status:        StatusWaiting,
		seedHash:      c.Hash,
		serverSeed:    c.ServerSeed,
		crashPoint:    c.CrashPoint,
		multiplier:    1,
		createdAt:     now,
		bettingEndsAt: now.Add(e.cfg.WaitingDuration),
		bets:          make(map[string]*Bet),
		pending:       make(map[string]struct{}),
	}
	e.log.Debug("round opened", zap.Int64("round_id", id), zap.String("seed_hash", c.Hash))
	return nil
}

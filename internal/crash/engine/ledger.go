package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// tempo máximo para concluir créditos que o jogador já ganhou,
// mesmo se a requisição HTTP cair
const creditTimeout = 10 * time.Second

// Tipos de crédito que podem ficar pendentes de reconciliação
const (
	CreditRefund = "refund"
	CreditPayout = "payout"
)

// CreditFailure descreve um crédito devido ao jogador que a carteira não aceitou.
// A referência idempotente é crash-bet:<BetID>:<Kind>.
type CreditFailure struct {
	Kind        string
	RoundID     int64
	BetID       string
	Username    string
	AmountCents int64
}

// CashOutResult é o que o jogador recebe ao sacar
type CashOutResult struct {
	RoundID     int64   `json:"roundId"`
	BetID       string  `json:"betId"`
	Multiplier  float64 `json:"multiplier"`
	PayoutCents int64   `json:"payoutCents"`
}

// PlaceBet debita o valor e registra a aposta na rodada em waiting.
//
// O usuário fica marcado como pendente enquanto a carteira responde: uma
// segunda chamada concorrente recebe DUPLICATE_BET. Se a rodada sair de
// waiting durante o débito, o valor é estornado e a aposta é recusada.
func (e *Engine) PlaceBet(ctx context.Context, username string, amountCents int64) (Bet, error) {
	const op = "place_bet"
	if username == "" {
		return Bet{}, e.reject(op, apperr.ErrUnauthenticated)
	}
	if amountCents <= 0 {
		return Bet{}, e.reject(op, apperr.ErrInvalidAmount)
	}

	e.mu.Lock()
	r := e.round
	if r.status != StatusWaiting {
		e.mu.Unlock()
		return Bet{}, e.reject(op, apperr.ErrRoundNotAcceptingBets)
	}
	_, placed := r.bets[username]
	_, pending := r.pending[username]
	if placed || pending {
		e.mu.Unlock()
		return Bet{}, e.reject(op, apperr.ErrDuplicateBet)
	}
	r.pending[username] = struct{}{}
	e.mu.Unlock()

	bet := Bet{
		ID:                 uuid.NewString(),
		Username:           username,
		AmountCents:        amountCents,
		PlacedAtMultiplier: 1,
	}
	if err := e.wallet.Debit(ctx, username, amountCents, debitRef(bet.ID)); err != nil {
		e.mu.Lock()
		delete(r.pending, username)
		e.mu.Unlock()
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			return Bet{}, e.reject(op, apperr.ErrInsufficientBalance)
		}
		return Bet{}, e.reject(op, apperr.Wrap(apperr.CodeInternal, "debit failed", err))
	}

	now := e.clock.Now()
	e.mu.Lock()
	delete(r.pending, username)
	if e.round != r || r.status != StatusWaiting {
		e.mu.Unlock()
		e.refund(ctx, r.id, bet, "round_started")
		return Bet{}, e.reject(op, apperr.ErrRoundNotAcceptingBets)
	}
	bet.PlacedAt = now
	stored := bet
	r.bets[username] = &stored
	snap := e.snapshotLocked(now)
	e.snap.Store(snap)
	roundID := r.id
	e.mu.Unlock()

	e.log.Debug("bet placed", zap.Int64("round_id", roundID), zap.String("username", username), zap.Int64("amount_cents", amountCents))
	if e.hooks.OnBetPlaced != nil {
		e.hooks.OnBetPlaced(events.BetPlaced{
			BetID:       bet.ID,
			RoundID:     roundID,
			Username:    username,
			AmountCents: amountCents,
			TsUnixMs:    now.UnixMilli(),
		})
	}
	if e.hooks.OnSnapshot != nil {
		e.hooks.OnSnapshot(*snap)
	}
	return bet, nil
}

// CancelBet remove a aposta e devolve o valor; só vale em waiting
func (e *Engine) CancelBet(ctx context.Context, username string) (Bet, error) {
	const op = "cancel_bet"
	if username == "" {
		return Bet{}, e.reject(op, apperr.ErrUnauthenticated)
	}

	now := e.clock.Now()
	e.mu.Lock()
	r := e.round
	if r.status != StatusWaiting {
		e.mu.Unlock()
		return Bet{}, e.reject(op, apperr.ErrRoundNotAcceptingBets)
	}
	b, ok := r.bets[username]
	if !ok {
		e.mu.Unlock()
		return Bet{}, e.reject(op, apperr.ErrNoActiveBet)
	}
	delete(r.bets, username)
	bet := *b
	snap := e.snapshotLocked(now)
	e.snap.Store(snap)
	roundID := r.id
	e.mu.Unlock()

	if err := e.credit(ctx, username, bet.AmountCents, refundRef(bet.ID)); err != nil {
		restored := e.restoreBet(r, bet)
		e.log.Error("cancel refund failed",
			zap.Int64("round_id", roundID), zap.String("bet_id", bet.ID),
			zap.String("username", username), zap.Bool("bet_restored", restored), zap.Error(err))
		if !restored {
			e.creditFailed(CreditRefund, roundID, bet.ID, username, bet.AmountCents)
		}
		return Bet{}, apperr.Wrap(apperr.CodeInternal, "refund failed", err)
	}

	e.log.Debug("bet cancelled", zap.Int64("round_id", roundID), zap.String("username", username))
	if e.hooks.OnBetCancelled != nil {
		e.hooks.OnBetCancelled(events.BetCancelled{
			BetID:       bet.ID,
			RoundID:     roundID,
			Username:    username,
			AmountCents: bet.AmountCents,
			TsUnixMs:    now.UnixMilli(),
		})
	}
	if e.hooks.OnSnapshot != nil {
		e.hooks.OnSnapshot(*snap)
	}
	return bet, nil
}

// CashOut captura o multiplicador no instante da chamada e credita o prêmio.
//
// O multiplicador é recalculado pela curva com o relógio atual. Se ele já
// alcançou o crash point, o crash aconteceu antes da chamada (mesmo que o tick
// ainda não tenha rodado) e o saque é recusado. Uma vez marcado sob o lock, o
// tick de crash não anula mais a aposta.
func (e *Engine) CashOut(ctx context.Context, username string) (CashOutResult, error) {
	const op = "cash_out"
	if username == "" {
		return CashOutResult{}, e.reject(op, apperr.ErrUnauthenticated)
	}

	now := e.clock.Now()
	e.mu.Lock()
	r := e.round
	if r.status != StatusRunning {
		e.mu.Unlock()
		return CashOutResult{}, e.reject(op, apperr.ErrRoundNotRunning)
	}
	b, ok := r.bets[username]
	if !ok {
		e.mu.Unlock()
		return CashOutResult{}, e.reject(op, apperr.ErrNoActiveBet)
	}
	if b.CashedOut {
		e.mu.Unlock()
		return CashOutResult{}, e.reject(op, apperr.ErrAlreadyCashedOut)
	}
	m := MultiplierAt(now.Sub(r.startedAt), e.cfg.GrowthRate)
	if m < r.multiplier {
		m = r.multiplier
	}
	if m >= r.crashPoint {
		e.mu.Unlock()
		return CashOutResult{}, e.reject(op, apperr.ErrRoundNotRunning)
	}
	b.CashedOut = true
	b.CashoutMultiplier = m
	b.PayoutCents = payoutCents(b.AmountCents, m)
	res := CashOutResult{RoundID: r.id, BetID: b.ID, Multiplier: m, PayoutCents: b.PayoutCents}
	amount := b.AmountCents
	e.mu.Unlock()

	if err := e.credit(ctx, username, res.PayoutCents, payoutRef(res.BetID)); err != nil {
		// aposta já foi capturada; o crédito fica pendente de reconciliação
		e.log.Error("payout credit failed",
			zap.Int64("round_id", res.RoundID), zap.String("bet_id", res.BetID),
			zap.String("username", username), zap.Int64("payout_cents", res.PayoutCents), zap.Error(err))
		e.cashedOut(res, username, amount, now)
		e.creditFailed(CreditPayout, res.RoundID, res.BetID, username, res.PayoutCents)
		return res, apperr.Wrap(apperr.CodeInternal, "payout credit failed", err)
	}

	e.log.Debug("bet cashed out",
		zap.Int64("round_id", res.RoundID), zap.String("username", username),
		zap.Float64("multiplier", m), zap.Int64("payout_cents", res.PayoutCents))
	e.cashedOut(res, username, amount, now)
	return res, nil
}

// cashedOut publica o saque; vale mesmo com o crédito pendente,
// já que a aposta ficou registrada como sacada na rodada
func (e *Engine) cashedOut(res CashOutResult, username string, amount int64, now time.Time) {
	if e.hooks.OnCashOut == nil {
		return
	}
	e.hooks.OnCashOut(events.BetCashedOut{
		BetID:       res.BetID,
		RoundID:     res.RoundID,
		Username:    username,
		AmountCents: amount,
		Multiplier:  res.Multiplier,
		PayoutCents: res.PayoutCents,
		TsUnixMs:    now.UnixMilli(),
	})
}

// restoreBet devolve a aposta à rodada quando o estorno do cancelamento falhou.
// Só vale se a rodada ainda está em waiting e o usuário não apostou de novo.
func (e *Engine) restoreBet(r *round, bet Bet) bool {
	now := e.clock.Now()
	e.mu.Lock()
	if e.round != r || r.status != StatusWaiting {
		e.mu.Unlock()
		return false
	}
	_, placed := r.bets[bet.Username]
	_, pending := r.pending[bet.Username]
	if placed || pending {
		e.mu.Unlock()
		return false
	}
	stored := bet
	r.bets[bet.Username] = &stored
	snap := e.snapshotLocked(now)
	e.snap.Store(snap)
	e.mu.Unlock()

	if e.hooks.OnSnapshot != nil {
		e.hooks.OnSnapshot(*snap)
	}
	return true
}

func (e *Engine) creditFailed(kind string, roundID int64, betID, username string, cents int64) {
	if e.hooks.OnCreditFailed != nil {
		e.hooks.OnCreditFailed(CreditFailure{
			Kind:        kind,
			RoundID:     roundID,
			BetID:       betID,
			Username:    username,
			AmountCents: cents,
		})
	}
}

func (e *Engine) reject(op string, err *apperr.Error) error {
	if e.hooks.OnRejected != nil {
		e.hooks.OnRejected(op, err.Code)
	}
	return err
}

// refund devolve um débito já feito cuja aposta não pôde ser registrada
func (e *Engine) refund(ctx context.Context, roundID int64, bet Bet, reason string) {
	if err := e.credit(ctx, bet.Username, bet.AmountCents, refundRef(bet.ID)); err != nil {
		e.log.Error("bet refund failed",
			zap.Int64("round_id", roundID), zap.String("bet_id", bet.ID), zap.String("username", bet.Username),
			zap.String("reason", reason), zap.Error(err))
		e.creditFailed(CreditRefund, roundID, bet.ID, bet.Username, bet.AmountCents)
	}
}

// credit tenta com backoff exponencial; o contexto da requisição não cancela
// um crédito já devido ao jogador
func (e *Engine) credit(ctx context.Context, username string, cents int64, ref string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), creditTimeout)
	defer cancel()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := e.wallet.Credit(ctx, username, cents, ref)
		if errors.Is(err, apperr.ErrNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(e.cfg.CreditRetries),
	)
	return err
}

func debitRef(betID string) string  { return "crash-bet:" + betID + ":debit" }
func refundRef(betID string) string { return "crash-bet:" + betID + ":refund" }
func payoutRef(betID string) string { return "crash-bet:" + betID + ":payout" }

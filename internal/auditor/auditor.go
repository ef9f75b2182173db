// Package auditor reconfere cada rodada encerrada a partir do evento
// crash_round_settled: o hash publicado bate com a seed revelada, o crash
// point é o que a seed produz e nenhum pagamento passa do crash point.
package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash/fairness"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// Motivos de divergência (label das métricas)
const (
	ReasonCommitment = "commitment"
	ReasonCrashPoint = "crash_point"
	ReasonCashOut    = "cashout_above_crash"
	ReasonPayout     = "payout"
)

// Finding é uma divergência encontrada numa rodada
type Finding struct {
	RoundID int64
	BetID   string
	Reason  string
	Detail  string
}

func (f Finding) Error() string {
	if f.BetID != "" {
		return fmt.Sprintf("round %d bet %s: %s: %s", f.RoundID, f.BetID, f.Reason, f.Detail)
	}
	return fmt.Sprintf("round %d: %s: %s", f.RoundID, f.Reason, f.Detail)
}

// Audit confere uma rodada encerrada e devolve todas as divergências
func Audit(ev events.RoundSettled, p fairness.Params) []Finding {
	var out []Finding
	if err := fairness.Verify(ev.ServerSeed, ev.SeedCommitmentHash, ev.CrashPoint, p); err != nil {
		reason := ReasonCrashPoint
		if errors.Is(err, fairness.ErrCommitmentMismatch) {
			reason = ReasonCommitment
		}
		out = append(out, Finding{RoundID: ev.RoundID, Reason: reason, Detail: err.Error()})
	}

	crash := decimal.NewFromFloat(ev.CrashPoint).Round(2)
	for _, b := range ev.Bets {
		if !b.CashedOut {
			if b.PayoutCents != 0 {
				out = append(out, Finding{RoundID: ev.RoundID, BetID: b.BetID, Reason: ReasonPayout,
					Detail: fmt.Sprintf("lost bet paid %d cents", b.PayoutCents)})
			}
			continue
		}
		mult := decimal.NewFromFloat(b.CashoutMultiplier).Round(2)
		if mult.GreaterThanOrEqual(crash) {
			out = append(out, Finding{RoundID: ev.RoundID, BetID: b.BetID, Reason: ReasonCashOut,
				Detail: fmt.Sprintf("cashed out at %s with crash at %s", mult, crash)})
		}
		want := decimal.NewFromInt(b.AmountCents).Mul(mult).Floor().IntPart()
		if b.PayoutCents != want {
			out = append(out, Finding{RoundID: ev.RoundID, BetID: b.BetID, Reason: ReasonPayout,
				Detail: fmt.Sprintf("paid %d cents, expected %d", b.PayoutCents, want)})
		}
	}
	return out
}

// MessageReader é o subconjunto de *kafka.Reader usado pelo consumer
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Consumer lê crash_round_settled e audita cada rodada.
// Callbacks de métricas são setados no main.
type Consumer struct {
	Log    *zap.Logger
	Reader MessageReader
	Params fairness.Params

	OnVerified func()
	OnMismatch func(reason string)
	OnError    func(stage string)
}

// Run consome até o contexto ser cancelado
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			c.fail("read")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		c.Handle(m)
	}
}

// Handle audita uma mensagem já lida
func (c *Consumer) Handle(m kafka.Message) {
	var ev events.RoundSettled
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.Log.Warn("invalid round_settled message", zap.ByteString("key", m.Key), zap.Error(err))
		c.fail("decode")
		return
	}

	findings := Audit(ev, c.Params)
	if len(findings) == 0 {
		c.Log.Debug("round verified", zap.Int64("round_id", ev.RoundID), zap.Float64("crash_point", ev.CrashPoint))
		if c.OnVerified != nil {
			c.OnVerified()
		}
		return
	}
	for _, f := range findings {
		c.Log.Error("round audit mismatch",
			zap.Int64("round_id", f.RoundID),
			zap.String("bet_id", f.BetID),
			zap.String("reason", f.Reason),
			zap.String("detail", f.Detail),
		)
		if c.OnMismatch != nil {
			c.OnMismatch(f.Reason)
		}
	}
}

func (c *Consumer) fail(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}

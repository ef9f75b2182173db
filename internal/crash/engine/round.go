package engine

import (
	"time"

	"github.com/radieske/crash-game-platform/internal/crash/history"
)

// Status da rodada: waiting -> running -> crashed
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusRunning Status = "running"
	StatusCrashed Status = "crashed"
)

// Bet é a aposta de um jogador numa rodada
type Bet struct {
	ID                 string
	Username           string
	AmountCents        int64
	PlacedAtMultiplier float64
	PlacedAt           time.Time
	CashedOut          bool
	CashoutMultiplier  float64
	PayoutCents        int64
}

// round é o estado mutável da rodada ativa; só é acessado com Engine.mu
type round struct {
	id         int64
	status     Status
	seedHash   string
	serverSeed string
	crashPoint float64
	multiplier float64

	createdAt     time.Time
	bettingEndsAt time.Time
	startedAt     time.Time
	crashedAt     time.Time
	nextRoundAt   time.Time

	bets map[string]*Bet
	// débitos em andamento; impede aposta dupla enquanto a carteira responde
	pending map[string]struct{}
}

func (r *round) record() history.Round {
	out := history.Round{
		RoundID:            r.id,
		SeedCommitmentHash: r.seedHash,
		ServerSeed:         r.serverSeed,
		CrashPoint:         r.crashPoint,
		CreatedAt:          r.createdAt,
		StartedAt:          r.startedAt,
		CrashedAt:          r.crashedAt,
		BetsCount:          len(r.bets),
		Bets:               make([]history.Bet, 0, len(r.bets)),
	}
	for _, b := range r.bets {
		out.Bets = append(out.Bets, history.Bet{
			BetID:             b.ID,
			Username:          b.Username,
			AmountCents:       b.AmountCents,
			CashedOut:         b.CashedOut,
			CashoutMultiplier: b.CashoutMultiplier,
			PayoutCents:       b.PayoutCents,
			PlacedAt:          b.PlacedAt,
		})
	}
	return out
}

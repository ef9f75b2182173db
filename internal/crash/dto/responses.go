package dto

import (
	"time"

	"github.com/radieske/crash-game-platform/internal/crash/engine"
	"github.com/radieske/crash-game-platform/internal/crash/history"
)

// Envelope {success, message} esperado pelo cliente web

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StateResponse struct {
	Success bool        `json:"success"`
	Round   engine.View `json:"round"`
}

type BetResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	BetID       string  `json:"betId"`
	Amount      float64 `json:"amount"`
	AmountCents int64   `json:"amountCents"`
}

type CashOutResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	RoundID     int64   `json:"roundId"`
	Multiplier  float64 `json:"multiplier"`
	Payout      float64 `json:"payout"`
	PayoutCents int64   `json:"payoutCents"`
}

type BalanceResponse struct {
	Success      bool    `json:"success"`
	Balance      float64 `json:"balance"`
	BalanceCents int64   `json:"balanceCents"`
}

// HistoryItem é uma linha da faixa de crashes recentes
type HistoryItem struct {
	RoundID   int64     `json:"roundId"`
	CrashAt   float64   `json:"crashAt"`
	SeedHash  string    `json:"seedHash"`
	Seed      string    `json:"seed"`
	BetsCount int       `json:"betsCount"`
	Created   time.Time `json:"created"`
	StartedAt time.Time `json:"startedAt"`
	CrashedAt time.Time `json:"crashedAt"`
}

type HistoryResponse struct {
	Success bool          `json:"success"`
	History []HistoryItem `json:"history"`
	// cursor para a próxima página (before=); zero quando acabou
	NextBefore int64 `json:"nextBefore,omitempty"`
}

type UserHistoryResponse struct {
	Success    bool                `json:"success"`
	History    []history.UserRound `json:"history"`
	NextBefore int64               `json:"nextBefore,omitempty"`
}

type RoundResponse struct {
	Success bool          `json:"success"`
	Round   history.Round `json:"round"`
}

type VerifyResponse struct {
	Success    bool    `json:"success"`
	Seed       string  `json:"seed"`
	SeedHash   string  `json:"seedHash"`
	CrashPoint float64 `json:"crashPoint"`
	// preenchido quando o cliente mandou hash/crashPoint para conferir
	Valid   *bool  `json:"valid,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewHistoryItem(r history.Round) HistoryItem {
	return HistoryItem{
		RoundID:   r.RoundID,
		CrashAt:   r.CrashPoint,
		SeedHash:  r.SeedCommitmentHash,
		Seed:      r.ServerSeed,
		BetsCount: r.BetsCount,
		Created:   r.CreatedAt,
		StartedAt: r.StartedAt,
		CrashedAt: r.CrashedAt,
	}
}

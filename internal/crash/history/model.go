package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indica rodada inexistente no histórico
var ErrNotFound = errors.New("round not found")

// Round é o snapshot terminal de uma rodada, gravado uma única vez após o crash
type Round struct {
	RoundID            int64     `json:"roundId"`
	SeedCommitmentHash string    `json:"seedHash"`
	ServerSeed         string    `json:"serverSeed"`
	CrashPoint         float64   `json:"crashPoint"`
	CreatedAt          time.Time `json:"createdAt"`
	StartedAt          time.Time `json:"startedAt"`
	CrashedAt          time.Time `json:"crashedAt"`
	BetsCount          int       `json:"betsCount"`
	Bets               []Bet     `json:"bets,omitempty"`
}

// Bet é o estado final de uma aposta da rodada
type Bet struct {
	BetID             string    `json:"betId"`
	Username          string    `json:"username"`
	AmountCents       int64     `json:"amountCents"`
	CashedOut         bool      `json:"cashedOut"`
	CashoutMultiplier float64   `json:"cashoutMultiplier,omitempty"`
	PayoutCents       int64     `json:"payoutCents"`
	PlacedAt          time.Time `json:"placedAt"`
}

// UserRound é uma rodada vista por um jogador: dados públicos + a própria aposta
type UserRound struct {
	RoundID            int64     `json:"roundId"`
	SeedCommitmentHash string    `json:"seedHash"`
	ServerSeed         string    `json:"serverSeed"`
	CrashPoint         float64   `json:"crashPoint"`
	CrashedAt          time.Time `json:"crashedAt"`
	Bet                Bet       `json:"bet"`
}

// Store é o contrato de persistência append-only do histórico
type Store interface {
	Append(ctx context.Context, r Round) error
	Get(ctx context.Context, roundID int64) (Round, error)
	// List retorna as rodadas mais recentes primeiro; beforeID > 0 pagina para trás
	List(ctx context.Context, beforeID int64, limit int) ([]Round, error)
	ListByUser(ctx context.Context, username string, beforeID int64, limit int) ([]UserRound, error)
	LastRoundID(ctx context.Context) (int64, error)
}

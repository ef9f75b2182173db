package events

import "time"

// RoundStarted é publicado quando a rodada sai de waiting para running.
// Carrega apenas o compromisso; a seed só aparece em RoundSettled.
type RoundStarted struct {
	RoundID            int64     `json:"round_id"`
	SeedCommitmentHash string    `json:"seed_commitment_hash"`
	BetsCount          int       `json:"bets_count"`
	StartedAt          time.Time `json:"started_at"`
}

// SettledBet é o estado final de uma aposta dentro de RoundSettled
type SettledBet struct {
	BetID             string  `json:"bet_id"`
	Username          string  `json:"username"`
	AmountCents       int64   `json:"amount_cents"`
	CashedOut         bool    `json:"cashed_out"`
	CashoutMultiplier float64 `json:"cashout_multiplier,omitempty"`
	PayoutCents       int64   `json:"payout_cents"`
}

// RoundSettled é publicado quando a rodada entra em crashed e a seed é revelada.
// Consumido pelo round-auditor para verificação independente.
type RoundSettled struct {
	RoundID            int64        `json:"round_id"`
	SeedCommitmentHash string       `json:"seed_commitment_hash"`
	ServerSeed         string       `json:"server_seed"`
	CrashPoint         float64      `json:"crash_point"`
	StartedAt          time.Time    `json:"started_at"`
	CrashedAt          time.Time    `json:"crashed_at"`
	Bets               []SettledBet `json:"bets"`
}

package engine

import "time"

// Snapshot é a projeção pública da rodada ativa, gerada sob o lock do motor.
// CrashPoint e ServerSeed só são preenchidos depois do crash.
type Snapshot struct {
	RoundID            int64      `json:"roundId"`
	Status             Status     `json:"status"`
	Multiplier         float64    `json:"multiplier"`
	TimeLeft           int64      `json:"timeLeft,omitempty"` // segundos, só em waiting
	TimeLeftMs         int64      `json:"timeLeftMs,omitempty"`
	SeedCommitmentHash string     `json:"seedHash"`
	ServerSeed         string     `json:"serverSeed,omitempty"`
	CrashPoint         float64    `json:"crashPoint,omitempty"`
	BetsCount          int        `json:"betsCount"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CrashedAt          *time.Time `json:"crashedAt,omitempty"`
	GrowthRate         float64    `json:"growthRate"`
	ServerTime         time.Time  `json:"serverTime"`
}

// View é o snapshot acrescido da aposta do próprio jogador
type View struct {
	Snapshot
	HasBet            bool    `json:"hasBet"`
	HasCashedOut      bool    `json:"hasCashedOut"`
	BetAmountCents    int64   `json:"betAmountCents,omitempty"`
	CashoutMultiplier float64 `json:"cashoutMultiplier,omitempty"`
	PayoutCents       int64   `json:"payoutCents,omitempty"`
}

func (e *Engine) snapshotLocked(now time.Time) *Snapshot {
	r := e.round
	s := &Snapshot{
		RoundID:            r.id,
		Status:             r.status,
		Multiplier:         r.multiplier,
		SeedCommitmentHash: r.seedHash,
		BetsCount:          len(r.bets),
		GrowthRate:         e.cfg.GrowthRate,
		ServerTime:         now,
	}
	switch r.status {
	case StatusWaiting:
		left := r.bettingEndsAt.Sub(now)
		if left < 0 {
			left = 0
		}
		s.TimeLeftMs = left.Milliseconds()
		s.TimeLeft = int64((left + time.Second - 1) / time.Second)
	case StatusRunning:
		started := r.startedAt
		s.StartedAt = &started
	case StatusCrashed:
		started, crashed := r.startedAt, r.crashedAt
		s.StartedAt = &started
		s.CrashedAt = &crashed
		s.ServerSeed = r.serverSeed
		s.CrashPoint = r.crashPoint
	}
	return s
}

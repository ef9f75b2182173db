package events

// BetCashedOut é publicado quando um cash-out é capturado antes do crash.
type BetCashedOut struct {
	BetID       string  `json:"bet_id"`
	RoundID     int64   `json:"round_id"`
	Username    string  `json:"username"`
	AmountCents int64   `json:"amount_cents"`
	Multiplier  float64 `json:"multiplier"`
	PayoutCents int64   `json:"payout_cents"`
	TsUnixMs    int64   `json:"ts_unix_ms"`
}

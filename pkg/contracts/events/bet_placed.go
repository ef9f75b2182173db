package events

// BetPlaced é publicado quando uma aposta é aceita durante a fase waiting.
type BetPlaced struct {
	BetID       string `json:"bet_id"`
	RoundID     int64  `json:"round_id"`
	Username    string `json:"username"`
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// BetCancelled é publicado quando o jogador desiste da aposta antes da rodada começar.
type BetCancelled struct {
	BetID       string `json:"bet_id"`
	RoundID     int64  `json:"round_id"`
	Username    string `json:"username"`
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

package topics

const (
	// Rodadas
	RoundStarted = "crash_round_started"
	RoundSettled = "crash_round_settled"

	// Apostas
	BetPlaced    = "crash_bet_placed"
	BetCancelled = "crash_bet_cancelled"
	BetCashedOut = "crash_bet_cashed_out"
)

package engine

import (
	"math"
	"time"
)

// MultiplierAt é a curva do multiplicador: floor(100 * e^(rate*ms)) / 100.
// Depende só do tempo decorrido desde startedAt, então um cliente que reconecta
// recalcula o valor sem precisar dos ticks anteriores.
func MultiplierAt(elapsed time.Duration, rate float64) float64 {
	if elapsed <= 0 {
		return 1
	}
	ms := float64(elapsed.Milliseconds())
	m := math.Floor(100*math.Exp(rate*ms)) / 100
	if m < 1 {
		return 1
	}
	return m
}

// DurationTo é o menor tempo decorrido em que a curva atinge m
func DurationTo(m float64, rate float64) time.Duration {
	if m <= 1 || rate <= 0 {
		return 0
	}
	ms := math.Ceil(math.Log(m) / rate)
	return time.Duration(ms) * time.Millisecond
}

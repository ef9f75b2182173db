package engine

import "github.com/shopspring/decimal"

// payoutCents = amount × multiplier, arredondado para baixo em centavos
func payoutCents(amountCents int64, multiplier float64) int64 {
	m := decimal.NewFromFloat(multiplier).Round(2)
	return decimal.NewFromInt(amountCents).Mul(m).Floor().IntPart()
}

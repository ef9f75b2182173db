package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest aceita o valor em unidades (amount, até 2 casas) ou em centavos
type PlaceBetRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	AmountCents *int64           `json:"amountCents,omitempty"`
}

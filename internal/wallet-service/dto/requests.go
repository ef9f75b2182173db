package dto

type DepositRequest struct {
	Username    string `json:"username"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência simples
}

// MovementRequest é usado por debit e credit; external_ref é obrigatório
type MovementRequest struct {
	Username    string `json:"username"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"` // ex: crash-bet:{betId}:debit
}

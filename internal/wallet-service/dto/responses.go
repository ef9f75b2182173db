package dto

type WalletResponse struct {
	Username     string `json:"username"`
	BalanceCents int64  `json:"balance_cents"`
}

type MovementResponse struct {
	Status string `json:"status"` // DEBITED | CREDITED
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

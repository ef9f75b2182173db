// Package wallet implementa o serviço de saldo usado pelo motor de crash.
// Todas as operações são idempotentes por external_ref.
package wallet

import "context"

// Service é o contrato de saldo: débito atômico, crédito e consulta
type Service interface {
	Debit(ctx context.Context, username string, cents int64, ref string) error
	Credit(ctx context.Context, username string, cents int64, ref string) error
	Balance(ctx context.Context, username string) (int64, error)
}

package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/radieske/crash-game-platform/internal/shared/apperr"
)

// Schema das tabelas de carteira (idempotente)
const Schema = `
CREATE TABLE IF NOT EXISTS wallets (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
	version       BIGINT NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS wallet_ledger (
	id             BIGSERIAL PRIMARY KEY,
	wallet_id      TEXT NOT NULL REFERENCES wallets(id),
	operation_type TEXT NOT NULL,
	amount_cents   BIGINT NOT NULL,
	external_ref   TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (wallet_id, external_ref)
);`

// Postgres implementa operações de carteira em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas se ainda não existirem
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

// Balance retorna o saldo atual; usuário sem carteira tem saldo zero
func (p *Postgres) Balance(ctx context.Context, username string) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx, `SELECT balance_cents FROM wallets WHERE username=$1`, username).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

// Debit debita saldo com lock pessimista na linha da carteira
// Garante idempotência por (wallet_id, external_ref)
func (p *Postgres) Debit(ctx context.Context, username string, cents int64, ref string) error {
	if cents <= 0 {
		return apperr.ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var walletID string
	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT id, balance_cents FROM wallets WHERE username=$1 FOR UPDATE`, username).Scan(&walletID, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("lock wallet: %w", err)
	}

	applied, err := refApplied(ctx, tx, walletID, ref)
	if err != nil || applied {
		return err
	}
	if balance < cents {
		return apperr.ErrInsufficientBalance
	}

	if err := apply(ctx, tx, walletID, "DEBIT", -cents, cents, ref); err != nil {
		return err
	}
	return tx.Commit()
}

// Credit incrementa o saldo, criando a carteira se necessário
func (p *Postgres) Credit(ctx context.Context, username string, cents int64, ref string) error {
	_, err := p.credit(ctx, username, cents, ref, "CREDIT")
	return err
}

// Deposit é um crédito externo que retorna o saldo final
func (p *Postgres) Deposit(ctx context.Context, username string, cents int64, ref string) (int64, error) {
	if cents <= 0 {
		return 0, apperr.ErrInvalidAmount
	}
	if ref == "" {
		ref = "deposit:" + uuid.NewString()
	}
	return p.credit(ctx, username, cents, ref, "DEPOSIT")
}

func (p *Postgres) credit(ctx context.Context, username string, cents int64, ref, op string) (int64, error) {
	if cents < 0 {
		return 0, apperr.ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, username, balance_cents, version) VALUES($1,$2,0,1) ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), username); err != nil {
		return 0, fmt.Errorf("create wallet: %w", err)
	}

	var walletID string
	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT id, balance_cents FROM wallets WHERE username=$1 FOR UPDATE`, username).Scan(&walletID, &balance); err != nil {
		return 0, fmt.Errorf("lock wallet: %w", err)
	}

	applied, err := refApplied(ctx, tx, walletID, ref)
	if err != nil {
		return 0, err
	}
	if applied {
		return balance, nil
	}

	if err := apply(ctx, tx, walletID, op, cents, cents, ref); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance + cents, nil
}

func refApplied(ctx context.Context, tx *sql.Tx, walletID, ref string) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM wallet_ledger WHERE wallet_id=$1 AND external_ref=$2`, walletID, ref).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ledger ref: %w", err)
	}
	return true, nil
}

// apply altera o saldo e registra a operação no ledger
func apply(ctx context.Context, tx *sql.Tx, walletID, op string, delta, amount int64, ref string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2`,
		delta, walletID); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, external_ref) VALUES($1,$2,$3,$4)`,
		walletID, op, amount, ref); err != nil {
		return fmt.Errorf("insert ledger: %w", err)
	}
	return nil
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// schema portável entre Postgres e SQLite; multiplicadores guardados em centésimos
var schema = []string{
	`CREATE TABLE IF NOT EXISTS crash_rounds (
		round_id          BIGINT PRIMARY KEY,
		seed_hash         TEXT NOT NULL,
		server_seed       TEXT NOT NULL,
		crash_point_cents BIGINT NOT NULL,
		bets_count        INTEGER NOT NULL,
		created_at_ms     BIGINT NOT NULL,
		started_at_ms     BIGINT NOT NULL,
		crashed_at_ms     BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS crash_bets (
		bet_id                   TEXT PRIMARY KEY,
		round_id                 BIGINT NOT NULL REFERENCES crash_rounds(round_id),
		username                 TEXT NOT NULL,
		amount_cents             BIGINT NOT NULL,
		cashed_out               BOOLEAN NOT NULL,
		cashout_multiplier_cents BIGINT NOT NULL,
		payout_cents             BIGINT NOT NULL,
		placed_at_ms             BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS crash_bets_round_idx ON crash_bets (round_id)`,
	`CREATE INDEX IF NOT EXISTS crash_bets_user_round_idx ON crash_bets (username, round_id)`,
}

const roundColumns = `round_id, seed_hash, server_seed, crash_point_cents, bets_count, created_at_ms, started_at_ms, crashed_at_ms`

// SQLStore implementa Store sobre database/sql (lib/pq ou modernc sqlite)
type SQLStore struct {
	db      *sql.DB
	dollar  bool // placeholders $1..$n (postgres)
	pageMax int
}

// NewSQLStore cria o store; driver é "postgres" ou "sqlite"
func NewSQLStore(db *sql.DB, driver string, pageMax int) *SQLStore {
	if pageMax <= 0 {
		pageMax = 50
	}
	return &SQLStore{db: db, dollar: driver == "postgres", pageMax: pageMax}
}

// EnsureSchema cria as tabelas se ainda não existirem
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history schema: %w", err)
		}
	}
	return nil
}

// Append grava a rodada e as apostas numa transação.
// Rodada já gravada não é alterada; reenviar o mesmo registro não é erro.
func (s *SQLStore) Append(ctx context.Context, r Round) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO crash_rounds (`+roundColumns+`)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (round_id) DO NOTHING`),
		r.RoundID, r.SeedCommitmentHash, r.ServerSeed, toCents(r.CrashPoint), len(r.Bets),
		r.CreatedAt.UnixMilli(), r.StartedAt.UnixMilli(), r.CrashedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert round %d: %w", r.RoundID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for _, b := range r.Bets {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO crash_bets (bet_id, round_id, username, amount_cents, cashed_out, cashout_multiplier_cents, payout_cents, placed_at_ms)
			VALUES (?,?,?,?,?,?,?,?)`),
			b.BetID, r.RoundID, b.Username, b.AmountCents, b.CashedOut,
			toCents(b.CashoutMultiplier), b.PayoutCents, b.PlacedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert bet %s: %w", b.BetID, err)
		}
	}
	return tx.Commit()
}

// Get retorna a rodada com todas as apostas
func (s *SQLStore) Get(ctx context.Context, roundID int64) (Round, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+roundColumns+` FROM crash_rounds WHERE round_id = ?`), roundID)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Round{}, ErrNotFound
	}
	if err != nil {
		return Round{}, fmt.Errorf("get round %d: %w", roundID, err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT bet_id, username, amount_cents, cashed_out, cashout_multiplier_cents, payout_cents, placed_at_ms
		FROM crash_bets WHERE round_id = ? ORDER BY placed_at_ms, bet_id`), roundID)
	if err != nil {
		return Round{}, fmt.Errorf("get bets %d: %w", roundID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			b               Bet
			multCents, atMs int64
		)
		if err := rows.Scan(&b.BetID, &b.Username, &b.AmountCents, &b.CashedOut, &multCents, &b.PayoutCents, &atMs); err != nil {
			return Round{}, err
		}
		b.CashoutMultiplier = fromCents(multCents)
		b.PlacedAt = fromMillis(atMs)
		r.Bets = append(r.Bets, b)
	}
	return r, rows.Err()
}

// List retorna as rodadas mais recentes primeiro, sem as apostas
func (s *SQLStore) List(ctx context.Context, beforeID int64, limit int) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+roundColumns+` FROM crash_rounds
		WHERE round_id < ? ORDER BY round_id DESC LIMIT ?`),
		cursor(beforeID), s.clamp(limit))
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	out := make([]Round, 0)
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListByUser retorna as rodadas em que o jogador apostou, mais recentes primeiro
func (s *SQLStore) ListByUser(ctx context.Context, username string, beforeID int64, limit int) ([]UserRound, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT r.round_id, r.seed_hash, r.server_seed, r.crash_point_cents, r.crashed_at_ms,
		       b.bet_id, b.username, b.amount_cents, b.cashed_out, b.cashout_multiplier_cents, b.payout_cents, b.placed_at_ms
		FROM crash_bets b
		JOIN crash_rounds r ON r.round_id = b.round_id
		WHERE b.username = ? AND r.round_id < ?
		ORDER BY r.round_id DESC LIMIT ?`),
		username, cursor(beforeID), s.clamp(limit))
	if err != nil {
		return nil, fmt.Errorf("list rounds of %s: %w", username, err)
	}
	defer rows.Close()

	out := make([]UserRound, 0)
	for rows.Next() {
		var (
			u                                      UserRound
			crashCents, crashedMs, multCents, atMs int64
		)
		if err := rows.Scan(&u.RoundID, &u.SeedCommitmentHash, &u.ServerSeed, &crashCents, &crashedMs,
			&u.Bet.BetID, &u.Bet.Username, &u.Bet.AmountCents, &u.Bet.CashedOut, &multCents, &u.Bet.PayoutCents, &atMs); err != nil {
			return nil, err
		}
		u.CrashPoint = fromCents(crashCents)
		u.CrashedAt = fromMillis(crashedMs)
		u.Bet.CashoutMultiplier = fromCents(multCents)
		u.Bet.PlacedAt = fromMillis(atMs)
		out = append(out, u)
	}
	return out, rows.Err()
}

// LastRoundID retorna o maior round_id gravado (0 se vazio)
func (s *SQLStore) LastRoundID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(round_id) FROM crash_rounds`).Scan(&id); err != nil {
		return 0, fmt.Errorf("last round id: %w", err)
	}
	return id.Int64, nil
}

// Ping é usado pelo /healthz
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type scanner interface{ Scan(dest ...any) error }

func scanRound(sc scanner) (Round, error) {
	var (
		r                                           Round
		crashCents, createdMs, startedMs, crashedMs int64
	)
	if err := sc.Scan(&r.RoundID, &r.SeedCommitmentHash, &r.ServerSeed, &crashCents, &r.BetsCount,
		&createdMs, &startedMs, &crashedMs); err != nil {
		return Round{}, err
	}
	r.CrashPoint = fromCents(crashCents)
	r.CreatedAt = fromMillis(createdMs)
	r.StartedAt = fromMillis(startedMs)
	r.CrashedAt = fromMillis(crashedMs)
	return r, nil
}

func (s *SQLStore) clamp(limit int) int {
	if limit <= 0 || limit > s.pageMax {
		return s.pageMax
	}
	return limit
}

// rebind troca ? por $n quando o driver é postgres
func (s *SQLStore) rebind(q string) string {
	if !s.dollar {
		return q
	}
	var (
		b strings.Builder
		n int
	)
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func cursor(beforeID int64) int64 {
	if beforeID <= 0 {
		return math.MaxInt64
	}
	return beforeID
}

func toCents(m float64) int64 { return int64(math.Round(m * 100)) }

func fromCents(c int64) float64 { return float64(c) / 100 }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

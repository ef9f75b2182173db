package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash/engine"
	"github.com/radieske/crash-game-platform/internal/crash/fairness"
	"github.com/radieske/crash-game-platform/internal/crash/history"
	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	"github.com/radieske/crash-game-platform/internal/shared/db"
	"github.com/radieske/crash-game-platform/internal/wallet"
)

type fakeEngine struct {
	placed   []int64
	placeErr error
	cashOut  engine.CashOutResult
	cashErr  error
}

func (f *fakeEngine) View(username string) engine.View {
	v := engine.View{Snapshot: engine.Snapshot{RoundID: 4, Status: engine.StatusWaiting, Multiplier: 1, SeedCommitmentHash: "h4"}}
	if username == "alice" {
		v.HasBet = true
		v.BetAmountCents = 500
	}
	return v
}

func (f *fakeEngine) PlaceBet(_ context.Context, username string, cents int64) (engine.Bet, error) {
	if f.placeErr != nil {
		return engine.Bet{}, f.placeErr
	}
	f.placed = append(f.placed, cents)
	return engine.Bet{ID: "bet-1", Username: username, AmountCents: cents}, nil
}

func (f *fakeEngine) CancelBet(_ context.Context, username string) (engine.Bet, error) {
	return engine.Bet{ID: "bet-1", Username: username, AmountCents: 250}, nil
}

func (f *fakeEngine) CashOut(context.Context, string) (engine.CashOutResult, error) {
	return f.cashOut, f.cashErr
}

var defaultParams = fairness.Params{Salt: "crash-game-platform", HouseEdgeModulo: 33}

func newTestAPI(t *testing.T, eng *fakeEngine) (*API, *history.SQLStore, *wallet.Memory) {
	t.Helper()
	conn, err := db.ConnectSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	store := history.NewSQLStore(conn, db.DriverSQLite, 50)
	require.NoError(t, store.EnsureSchema(context.Background()))

	w := wallet.NewMemory()
	return &API{
		Log:      zap.NewNop(),
		Engine:   eng,
		History:  store,
		Wallet:   w,
		Fairness: defaultParams,
		PageMax:  3,
	}, store, w
}

func do(t *testing.T, h http.Handler, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestStateIsPublicButPersonalized(t *testing.T) {
	api, _, _ := newTestAPI(t, &fakeEngine{})
	h := api.Router()

	rec, out := do(t, h, http.MethodGet, "/api/crash/state", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	round := out["round"].(map[string]any)
	assert.Equal(t, float64(4), round["roundId"])
	assert.Equal(t, "h4", round["seedHash"])
	assert.Equal(t, false, round["hasBet"])
	assert.NotContains(t, round, "crashPoint")

	_, out = do(t, h, http.MethodGet, "/api/crash/state", "alice", "")
	assert.Equal(t, true, out["round"].(map[string]any)["hasBet"])
}

func TestBetRequiresIdentity(t *testing.T) {
	api, _, _ := newTestAPI(t, &fakeEngine{})

	rec, out := do(t, api.Router(), http.MethodPost, "/api/crash/bet", "", `{"amount": 10}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "UNAUTHENTICATED", out["code"])
}

func TestBetAmountParsing(t *testing.T) {
	eng := &fakeEngine{}
	api, _, _ := newTestAPI(t, eng)
	h := api.Router()

	rec, out := do(t, h, http.MethodPost, "/api/crash/bet", "alice", `{"amount": 10.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bet placed", out["message"])
	assert.Equal(t, 10.5, out["amount"])

	rec, _ = do(t, h, http.MethodPost, "/api/crash/bet", "alice", `{"amountCents": 275}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1050, 275}, eng.placed)

	cases := map[string]string{
		"negative":       `{"amount": -1}`,
		"zero":           `{"amount": 0}`,
		"sub-cent":       `{"amount": 1.234}`,
		"missing":        `{}`,
		"negative cents": `{"amountCents": -5}`,
		"overflow":       `{"amount": 184467440737095517.16}`,
		"huge":           `{"amount": 1e30}`,
	}
	for name, body := range cases {
		rec, out := do(t, h, http.MethodPost, "/api/crash/bet", "alice", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "INVALID_AMOUNT", out["code"], name)
	}

	rec, out = do(t, h, http.MethodPost, "/api/crash/bet", "alice", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", out["code"])
	assert.Len(t, eng.placed, 2)
}

func TestEngineErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.ErrRoundNotAcceptingBets, http.StatusConflict, "ROUND_NOT_ACCEPTING_BETS"},
		{apperr.ErrDuplicateBet, http.StatusConflict, "DUPLICATE_BET"},
		{apperr.ErrInsufficientBalance, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE"},
		{apperr.Wrap(apperr.CodeInternal, "debit failed", errors.New("dial tcp: refused")), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		api, _, _ := newTestAPI(t, &fakeEngine{placeErr: tc.err})
		rec, out := do(t, api.Router(), http.MethodPost, "/api/crash/bet", "bob", `{"amount": 1}`)
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.Equal(t, tc.code, out["code"])
		assert.NotContains(t, out["message"], "refused")
	}
}

func TestCashOutAndCancel(t *testing.T) {
	eng := &fakeEngine{cashOut: engine.CashOutResult{RoundID: 4, BetID: "bet-1", Multiplier: 1.87, PayoutCents: 1870}}
	api, _, _ := newTestAPI(t, eng)
	h := api.Router()

	rec, out := do(t, h, http.MethodPost, "/api/crash/cashout", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.87, out["multiplier"])
	assert.Equal(t, 18.7, out["payout"])
	assert.Equal(t, float64(1870), out["payoutCents"])

	eng.cashErr = apperr.ErrRoundNotRunning
	rec, out = do(t, h, http.MethodPost, "/api/crash/cashout", "alice", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "round is not running", out["message"])

	rec, out = do(t, h, http.MethodPost, "/api/crash/cancel-bet", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bet cancelled", out["message"])
	assert.Equal(t, 2.5, out["amount"])
}

func TestBalance(t *testing.T) {
	api, _, w := newTestAPI(t, &fakeEngine{})
	_, err := w.Deposit(context.Background(), "alice", 12345, "dep-1")
	require.NoError(t, err)

	rec, out := do(t, api.Router(), http.MethodGet, "/api/balance", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 123.45, out["balance"])
	assert.Equal(t, float64(12345), out["balanceCents"])
}

func seedHistory(t *testing.T, store *history.SQLStore) {
	t.Helper()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 5; id++ {
		r := history.Round{
			RoundID:            id,
			SeedCommitmentHash: "hash",
			ServerSeed:         "seed",
			CrashPoint:         1.5,
			CreatedAt:          base,
			StartedAt:          base.Add(10 * time.Second),
			CrashedAt:          base.Add(20 * time.Second),
			Bets: []history.Bet{
				{BetID: "a" + string(rune('0'+id)), Username: "alice", AmountCents: 100, PlacedAt: base},
				{BetID: "b" + string(rune('0'+id)), Username: "bob", AmountCents: 300, PlacedAt: base},
			},
		}
		r.BetsCount = len(r.Bets)
		require.NoError(t, store.Append(context.Background(), r))
	}
}

func TestHistoryEndpoints(t *testing.T) {
	api, store, _ := newTestAPI(t, &fakeEngine{})
	seedHistory(t, store)
	h := api.Router()

	rec, out := do(t, h, http.MethodGet, "/api/history/crash?limit=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := out["history"].([]any)
	require.Len(t, items, 3) // PageMax
	first := items[0].(map[string]any)
	assert.Equal(t, float64(5), first["roundId"])
	assert.Equal(t, 1.5, first["crashAt"])
	assert.Equal(t, "seed", first["seed"])
	assert.Equal(t, float64(2), first["betsCount"])
	assert.Equal(t, float64(3), out["nextBefore"])

	_, out = do(t, h, http.MethodGet, "/api/history/crash?before=3", "", "")
	assert.Len(t, out["history"].([]any), 2)
	assert.NotContains(t, out, "nextBefore")

	rec, _ = do(t, h, http.MethodGet, "/api/history/crash?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// rodada: só a aposta do próprio jogador
	rec, out = do(t, h, http.MethodGet, "/api/history/crash/2", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	round := out["round"].(map[string]any)
	bets := round["bets"].([]any)
	require.Len(t, bets, 1)
	assert.Equal(t, "bob", bets[0].(map[string]any)["username"])
	assert.Equal(t, float64(2), round["betsCount"])

	_, out = do(t, h, http.MethodGet, "/api/history/crash/2", "", "")
	assert.NotContains(t, out["round"].(map[string]any), "bets")

	rec, out = do(t, h, http.MethodGet, "/api/history/crash/99", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", out["code"])

	rec, _ = do(t, h, http.MethodGet, "/api/history/crash/zero", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = do(t, h, http.MethodGet, "/api/history/crash/me?limit=2", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine := out["history"].([]any)
	require.Len(t, mine, 2)
	assert.Equal(t, float64(5), mine[0].(map[string]any)["roundId"])
	assert.Equal(t, "alice", mine[0].(map[string]any)["bet"].(map[string]any)["username"])

	rec, _ = do(t, h, http.MethodGet, "/api/history/crash/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerify(t *testing.T) {
	api, _, _ := newTestAPI(t, &fakeEngine{})
	h := api.Router()
	seed := strings.Repeat("a", 64)
	hash := "ffe054fe7ae0cb6dc65c3af9b61d5209f439851db43d0ba5997337df154668eb"

	rec, out := do(t, h, http.MethodGet, "/api/crash/verify?seed="+seed, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, hash, out["seedHash"])
	assert.Equal(t, 1.68, out["crashPoint"])
	assert.NotContains(t, out, "valid")

	_, out = do(t, h, http.MethodGet, "/api/crash/verify?seed="+seed+"&hash="+hash+"&crashPoint=1.68", "", "")
	assert.Equal(t, true, out["valid"])

	_, out = do(t, h, http.MethodGet, "/api/crash/verify?seed="+seed+"&hash="+hash+"&crashPoint=2.00", "", "")
	assert.Equal(t, false, out["valid"])
	assert.Equal(t, fairness.ErrCrashPointMismatch.Error(), out["message"])

	_, out = do(t, h, http.MethodGet, "/api/crash/verify?seed="+seed+"&hash=deadbeef", "", "")
	assert.Equal(t, false, out["valid"])

	rec, _ = do(t, h, http.MethodGet, "/api/crash/verify", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

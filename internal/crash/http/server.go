package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash/dto"
	"github.com/radieske/crash-game-platform/internal/crash/engine"
	"github.com/radieske/crash-game-platform/internal/crash/fairness"
	"github.com/radieske/crash-game-platform/internal/crash/history"
	"github.com/radieske/crash-game-platform/internal/shared/apperr"
)

// UserHeader carrega o usuário já autenticado pelo gateway
const UserHeader = "X-Username"

// Engine é o que a API usa do motor de rodadas
type Engine interface {
	View(username string) engine.View
	PlaceBet(ctx context.Context, username string, amountCents int64) (engine.Bet, error)
	CancelBet(ctx context.Context, username string) (engine.Bet, error)
	CashOut(ctx context.Context, username string) (engine.CashOutResult, error)
}

// Balances consulta o saldo no serviço de carteira
type Balances interface {
	Balance(ctx context.Context, username string) (int64, error)
}

// API expõe os endpoints REST do crash e o WebSocket de estado
type API struct {
	Log      *zap.Logger
	Engine   Engine
	History  history.Store
	Wallet   Balances
	Fairness fairness.Params
	WS       http.HandlerFunc // hub WebSocket; nil desliga /ws
	PageMax  int
}

// Router retorna o roteador HTTP com os endpoints da API
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(identify)

	r.Get("/api/crash/state", a.getState)     // snapshot + aposta do próprio jogador
	r.Get("/api/crash/verify", a.verify)      // recalcula hash e crash point de uma seed
	r.Get("/api/history/crash", a.listRounds) // faixa de crashes recentes

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/api/crash/bet", a.placeBet)
		r.Post("/api/crash/cancel-bet", a.cancelBet)
		r.Post("/api/crash/cashout", a.cashOut)
		r.Get("/api/history/crash/me", a.listMyRounds)
		r.Get("/api/balance", a.getBalance)
	})
	r.Get("/api/history/crash/{roundId}", a.getRound)

	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

type userKey struct{}

// identify lê o usuário do header; a API confia na identidade resolvida antes
func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
			r = r.WithContext(context.WithValue(r.Context(), userKey{}, u))
		}
		next.ServeHTTP(w, r)
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if username(r) == "" {
			writeError(w, apperr.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func username(r *http.Request) string {
	u, _ := r.Context().Value(userKey{}).(string)
	return u
}

// getState retorna o snapshot da rodada ativa com a visão do jogador
func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.StateResponse{Success: true, Round: a.Engine.View(username(r))})
}

// placeBet debita e registra a aposta na rodada em waiting
func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "bad json"))
		return
	}
	cents, err := amountCents(req)
	if err != nil {
		writeError(w, err)
		return
	}

	bet, err := a.Engine.PlaceBet(r.Context(), username(r), cents)
	if err != nil {
		a.fail(w, r, "place bet", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetResponse{
		Success:     true,
		Message:     "Bet placed",
		BetID:       bet.ID,
		Amount:      units(bet.AmountCents),
		AmountCents: bet.AmountCents,
	})
}

// cancelBet remove a aposta e devolve o valor (só em waiting)
func (a *API) cancelBet(w http.ResponseWriter, r *http.Request) {
	bet, err := a.Engine.CancelBet(r.Context(), username(r))
	if err != nil {
		a.fail(w, r, "cancel bet", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetResponse{
		Success:     true,
		Message:     "Bet cancelled",
		BetID:       bet.ID,
		Amount:      units(bet.AmountCents),
		AmountCents: bet.AmountCents,
	})
}

// cashOut captura o multiplicador atual e credita o prêmio
func (a *API) cashOut(w http.ResponseWriter, r *http.Request) {
	res, err := a.Engine.CashOut(r.Context(), username(r))
	if err != nil {
		a.fail(w, r, "cash out", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CashOutResponse{
		Success:     true,
		Message:     "Cashed out at " + strconv.FormatFloat(res.Multiplier, 'f', 2, 64) + "x",
		RoundID:     res.RoundID,
		Multiplier:  res.Multiplier,
		Payout:      units(res.PayoutCents),
		PayoutCents: res.PayoutCents,
	})
}

// getBalance repassa o saldo do serviço de carteira
func (a *API) getBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := a.Wallet.Balance(r.Context(), username(r))
	if err != nil {
		a.fail(w, r, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Success: true, Balance: units(bal), BalanceCents: bal})
}

// listRounds retorna as últimas rodadas com seed revelada, mais recentes primeiro
func (a *API) listRounds(w http.ResponseWriter, r *http.Request) {
	before, limit, err := a.page(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rounds, err := a.History.List(r.Context(), before, limit)
	if err != nil {
		a.fail(w, r, "list rounds", err)
		return
	}
	out := dto.HistoryResponse{Success: true, History: make([]dto.HistoryItem, 0, len(rounds))}
	for _, rd := range rounds {
		out.History = append(out.History, dto.NewHistoryItem(rd))
	}
	if len(rounds) == limit {
		out.NextBefore = rounds[len(rounds)-1].RoundID
	}
	writeJSON(w, http.StatusOK, out)
}

// listMyRounds retorna as rodadas em que o jogador apostou
func (a *API) listMyRounds(w http.ResponseWriter, r *http.Request) {
	before, limit, err := a.page(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rounds, err := a.History.ListByUser(r.Context(), username(r), before, limit)
	if err != nil {
		a.fail(w, r, "list user rounds", err)
		return
	}
	out := dto.UserHistoryResponse{Success: true, History: rounds}
	if len(rounds) == limit {
		out.NextBefore = rounds[len(rounds)-1].RoundID
	}
	writeJSON(w, http.StatusOK, out)
}

// getRound retorna uma rodada encerrada; das apostas, só a do próprio jogador
func (a *API) getRound(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roundId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "invalid round id"))
		return
	}
	rd, err := a.History.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, apperr.New(apperr.CodeNotFound, "round not found"))
		return
	}
	if err != nil {
		a.fail(w, r, "get round", err)
		return
	}

	me := username(r)
	own := make([]history.Bet, 0, 1)
	for _, b := range rd.Bets {
		if me != "" && b.Username == me {
			own = append(own, b)
		}
	}
	rd.Bets = own
	writeJSON(w, http.StatusOK, dto.RoundResponse{Success: true, Round: rd})
}

// verify recalcula hash e crash point; com hash/crashPoint informados, confere a revelação
func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seed := strings.TrimSpace(q.Get("seed"))
	if seed == "" {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "seed required"))
		return
	}
	out := dto.VerifyResponse{
		Success:    true,
		Seed:       seed,
		SeedHash:   fairness.Commit(seed),
		CrashPoint: fairness.CrashPoint(seed, a.Fairness),
	}

	hash := strings.TrimSpace(q.Get("hash"))
	if hash != "" {
		crash := out.CrashPoint
		if s := q.Get("crashPoint"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				writeError(w, apperr.New(apperr.CodeInvalidRequest, "invalid crashPoint"))
				return
			}
			crash = v
		}
		err := fairness.Verify(seed, hash, crash, a.Fairness)
		valid := err == nil
		out.Valid = &valid
		if err != nil {
			out.Message = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// page lê before/limit da query; limit é truncado em PageMax
func (a *API) page(r *http.Request) (before int64, limit int, err error) {
	q := r.URL.Query()
	limit = a.PageMax
	if s := q.Get("limit"); s != "" {
		n, perr := strconv.Atoi(s)
		if perr != nil || n <= 0 {
			return 0, 0, apperr.New(apperr.CodeInvalidRequest, "invalid limit")
		}
		if n < limit {
			limit = n
		}
	}
	if s := q.Get("before"); s != "" {
		before, err = strconv.ParseInt(s, 10, 64)
		if err != nil || before < 0 {
			return 0, 0, apperr.New(apperr.CodeInvalidRequest, "invalid before")
		}
	}
	return before, limit, nil
}

// fail registra erros internos e responde com o código de domínio
func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if apperr.CodeOf(err) == apperr.CodeInternal {
		a.Log.Error(op, zap.String("username", username(r)),
			zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
	}
	writeError(w, err)
}

// amountCents converte o pedido para centavos; mais de 2 casas é inválido
func amountCents(req dto.PlaceBetRequest) (int64, error) {
	switch {
	case req.AmountCents != nil:
		if *req.AmountCents <= 0 {
			return 0, apperr.ErrInvalidAmount
		}
		return *req.AmountCents, nil
	case req.Amount != nil:
		cents := req.Amount.Shift(2)
		if !cents.IsPositive() {
			return 0, apperr.ErrInvalidAmount
		}
		if !cents.Equal(cents.Truncate(0)) {
			return 0, apperr.New(apperr.CodeInvalidAmount, "amount must have at most 2 decimal places")
		}
		// IntPart estoura int64 silenciosamente
		if cents.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
			return 0, apperr.New(apperr.CodeInvalidAmount, "amount too large")
		}
		return cents.IntPart(), nil
	default:
		return 0, apperr.New(apperr.CodeInvalidAmount, "amount required")
	}
}

func units(cents int64) float64 { return decimal.New(cents, -2).InexactFloat64() }

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), dto.ErrorResponse{Success: false, Code: string(code), Message: apperr.MessageOf(err)})
}

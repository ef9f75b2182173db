package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	"github.com/radieske/crash-game-platform/internal/wallet-service/dto"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	Balance(ctx context.Context, username string) (int64, error)
	Deposit(ctx context.Context, username string, cents int64, ref string) (int64, error)
	Debit(ctx context.Context, username string, cents int64, ref string) error
	Credit(ctx context.Context, username string, cents int64, ref string) error
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wallet", s.getWallet)        // ?username=...
	mux.HandleFunc("POST /wallet/deposit", s.deposit) // crédito externo
	mux.HandleFunc("POST /wallet/debit", s.debit)     // débito de aposta
	mux.HandleFunc("POST /wallet/credit", s.credit)   // payout / estorno
	return mux
}

// getWallet retorna o saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "username required"))
		return
	}
	bal, err := s.repo.Balance(r.Context(), username)
	if err != nil {
		s.log.Error("balance", zap.String("username", username), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{Username: username, BalanceCents: bal})
}

// deposit adiciona saldo à carteira do usuário
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "bad json"))
		return
	}
	if req.Username == "" || req.AmountCents <= 0 {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "invalid payload"))
		return
	}
	bal, err := s.repo.Deposit(r.Context(), req.Username, req.AmountCents, req.ExternalRef)
	if err != nil {
		s.log.Error("deposit", zap.String("username", req.Username), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{Username: req.Username, BalanceCents: bal})
}

// debit retira saldo; INSUFFICIENT_BALANCE quando não há fundos
func (s *Server) debit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}
	if err := s.repo.Debit(r.Context(), req.Username, req.AmountCents, req.ExternalRef); err != nil {
		if apperr.CodeOf(err) == apperr.CodeInternal {
			s.log.Error("debit", zap.String("username", req.Username), zap.String("ref", req.ExternalRef), zap.Error(err))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MovementResponse{Status: "DEBITED"})
}

// credit devolve saldo (payout ou estorno)
func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}
	if err := s.repo.Credit(r.Context(), req.Username, req.AmountCents, req.ExternalRef); err != nil {
		s.log.Error("credit", zap.String("username", req.Username), zap.String("ref", req.ExternalRef), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MovementResponse{Status: "CREDITED"})
}

func decodeMovement(w http.ResponseWriter, r *http.Request) (dto.MovementRequest, bool) {
	var req dto.MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "bad json"))
		return req, false
	}
	if req.Username == "" || req.AmountCents < 0 || req.ExternalRef == "" {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "invalid payload"))
		return req, false
	}
	return req, true
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), dto.ErrorResponse{Code: string(code), Message: apperr.MessageOf(err)})
}

// Package gateway é o proxy reverso público: API do crash e WebSocket vão
// para o crash-service, /api/wallet/* para o wallet-service.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"
)

// Targets são as URLs base dos serviços internos
type Targets struct {
	Crash  string
	Wallet string
}

func rp(to string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"code":"INTERNAL","message":"upstream unavailable"}`))
	}
	return p, nil
}

// NewRouter monta o mux do gateway; o upgrade do WebSocket passa pelo ReverseProxy
func NewRouter(t Targets, log *zap.Logger) (http.Handler, error) {
	crash, err := rp(t.Crash, log)
	if err != nil {
		return nil, err
	}
	wallet, err := rp(t.Wallet, log)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// wallet (ex.: /api/wallet/wallet?username=... -> wallet-service /wallet?username=...)
	mux.Handle("/api/wallet/", http.StripPrefix("/api/wallet", wallet))

	// crash: estado, apostas, histórico, verify e saldo
	mux.Handle("/api/", crash)
	mux.Handle("/ws", crash)

	return withCORS(mux), nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Username")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

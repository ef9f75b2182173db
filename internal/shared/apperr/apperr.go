// Package apperr define a taxonomia de erros de domínio e o mapeamento para HTTP.
package apperr

import (
	"errors"
	"net/http"
)

// Kind agrupa códigos por tratamento (validação, conflito, recurso, interno)
type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindResource        Kind = "resource"
	KindNotFound        Kind = "not_found"
	KindUnauthenticated Kind = "unauthenticated"
	KindInternal        Kind = "internal"
)

// Code é o código de erro legível por máquina devolvido ao cliente
type Code string

const (
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeInvalidRequest        Code = "INVALID_REQUEST"
	CodeRoundNotAcceptingBets Code = "ROUND_NOT_ACCEPTING_BETS"
	CodeRoundNotRunning       Code = "ROUND_NOT_RUNNING"
	CodeDuplicateBet          Code = "DUPLICATE_BET"
	CodeNoActiveBet           Code = "NO_ACTIVE_BET"
	CodeAlreadyCashedOut      Code = "ALREADY_CASHED_OUT"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeNotFound              Code = "NOT_FOUND"
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodeInternal              Code = "INTERNAL"
)

var kinds = map[Code]Kind{
	CodeInvalidAmount:         KindValidation,
	CodeInvalidRequest:        KindValidation,
	CodeRoundNotAcceptingBets: KindConflict,
	CodeRoundNotRunning:       KindConflict,
	CodeDuplicateBet:          KindConflict,
	CodeNoActiveBet:           KindConflict,
	CodeAlreadyCashedOut:      KindConflict,
	CodeInsufficientBalance:   KindResource,
	CodeNotFound:              KindNotFound,
	CodeUnauthenticated:       KindUnauthenticated,
	CodeInternal:              KindInternal,
}

// Kind retorna o grupo do código; códigos desconhecidos são internos
func (c Code) Kind() Kind {
	if k, ok := kinds[c]; ok {
		return k
	}
	return KindInternal
}

// HTTPStatus mapeia o código para o status HTTP da resposta
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindResource:
		return http.StatusPaymentRequired
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error é o erro de domínio com código, mensagem para o usuário e causa opcional
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is compara pelo código, permitindo errors.Is(err, apperr.ErrDuplicateBet)
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinelas usadas pelo motor e pelos handlers
var (
	ErrInvalidAmount         = New(CodeInvalidAmount, "amount must be positive")
	ErrRoundNotAcceptingBets = New(CodeRoundNotAcceptingBets, "round is not accepting bets")
	ErrRoundNotRunning       = New(CodeRoundNotRunning, "round is not running")
	ErrDuplicateBet          = New(CodeDuplicateBet, "bet already placed for this round")
	ErrNoActiveBet           = New(CodeNoActiveBet, "no active bet for this round")
	ErrAlreadyCashedOut      = New(CodeAlreadyCashedOut, "bet already cashed out")
	ErrInsufficientBalance   = New(CodeInsufficientBalance, "insufficient balance")
	ErrNotFound              = New(CodeNotFound, "not found")
	ErrUnauthenticated       = New(CodeUnauthenticated, "missing user identity")
)

// CodeOf extrai o código de qualquer erro; erros sem código viram INTERNAL
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf devolve a mensagem segura para o cliente
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "internal error"
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("place bet: %w", New(CodeDuplicateBet, "user already has a bet"))

	require.True(t, errors.Is(err, ErrDuplicateBet))
	require.False(t, errors.Is(err, ErrNoActiveBet))
	assert.Equal(t, CodeDuplicateBet, CodeOf(err))
}

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidAmount:         http.StatusBadRequest,
		CodeRoundNotAcceptingBets: http.StatusConflict,
		CodeAlreadyCashedOut:      http.StatusConflict,
		CodeInsufficientBalance:   http.StatusPaymentRequired,
		CodeNotFound:              http.StatusNotFound,
		CodeUnauthenticated:       http.StatusUnauthorized,
		CodeInternal:              http.StatusInternalServerError,
		Code("SOMETHING_ELSE"):    http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), string(code))
	}
}

func TestMessageOfHidesInternalCauses(t *testing.T) {
	raw := errors.New("pq: connection refused")

	assert.Equal(t, "internal error", MessageOf(raw))
	assert.Equal(t, "internal error", MessageOf(Wrap(CodeInternal, "history write", raw)))
	assert.Equal(t, ErrInsufficientBalance.Message, MessageOf(ErrInsufficientBalance))
	assert.ErrorIs(t, Wrap(CodeInternal, "history write", raw), raw)
}

package wallet

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	whttp "github.com/radieske/crash-game-platform/internal/wallet-service/http"
)

func TestClientAgainstWalletService(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	_, _ = repo.Deposit(ctx, "alice", 1000, "dep-1")

	srv := httptest.NewServer(whttp.NewServer(zap.NewNop(), repo).Router())
	defer srv.Close()
	c := NewClient(srv.URL)

	require.NoError(t, c.Debit(ctx, "alice", 300, "crash-bet:1:debit"))
	require.ErrorIs(t, c.Debit(ctx, "alice", 5000, "crash-bet:2:debit"), apperr.ErrInsufficientBalance)
	require.NoError(t, c.Credit(ctx, "alice", 450, "crash-bet:1:payout"))

	bal, err := c.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1150), bal)

	bal, err = c.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestClientRejectsInvalidPayload(t *testing.T) {
	srv := httptest.NewServer(whttp.NewServer(zap.NewNop(), NewMemory()).Router())
	defer srv.Close()

	err := NewClient(srv.URL).Debit(context.Background(), "alice", 100, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

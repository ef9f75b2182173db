package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash/fairness"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

var params = fairness.Params{Salt: "crash-game-platform", HouseEdgeModulo: 33}

// seed "a"*64 com os parâmetros acima dá 1.68x
func settled() events.RoundSettled {
	return events.RoundSettled{
		RoundID:            7,
		SeedCommitmentHash: "ffe054fe7ae0cb6dc65c3af9b61d5209f439851db43d0ba5997337df154668eb",
		ServerSeed:         strings.Repeat("a", 64),
		CrashPoint:         1.68,
		Bets: []events.SettledBet{
			{BetID: "b1", Username: "alice", AmountCents: 1000, CashedOut: true, CashoutMultiplier: 1.5, PayoutCents: 1500},
			{BetID: "b2", Username: "bob", AmountCents: 333, CashedOut: true, CashoutMultiplier: 1.67, PayoutCents: 556},
			{BetID: "b3", Username: "carol", AmountCents: 200},
		},
	}
}

func reasons(fs []Finding) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Reason)
	}
	return out
}

func TestAuditCleanRound(t *testing.T) {
	assert.Empty(t, Audit(settled(), params))
}

func TestAuditFindings(t *testing.T) {
	cases := map[string]struct {
		mutate func(*events.RoundSettled)
		want   []string
	}{
		"hash of another seed": {
			mutate: func(e *events.RoundSettled) { e.SeedCommitmentHash = fairness.Commit("other") },
			want:   []string{ReasonCommitment},
		},
		"crash point rewritten": {
			mutate: func(e *events.RoundSettled) { e.CrashPoint = 2.00 },
			want:   []string{ReasonCrashPoint},
		},
		"cash-out at the crash point": {
			mutate: func(e *events.RoundSettled) {
				e.Bets[0].CashoutMultiplier = 1.68
				e.Bets[0].PayoutCents = 1680
			},
			want: []string{ReasonCashOut},
		},
		"rounded up payout": {
			mutate: func(e *events.RoundSettled) { e.Bets[1].PayoutCents = 557 },
			want:   []string{ReasonPayout},
		},
		"lost bet paid": {
			mutate: func(e *events.RoundSettled) { e.Bets[2].PayoutCents = 200 },
			want:   []string{ReasonPayout},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ev := settled()
			tc.mutate(&ev)
			fs := Audit(ev, params)
			assert.Equal(t, tc.want, reasons(fs))
			for _, f := range fs {
				assert.Equal(t, int64(7), f.RoundID)
				assert.Contains(t, f.Error(), "round 7")
			}
		})
	}
}

type fakeReader struct {
	mu   sync.Mutex
	msgs []kafka.Message
	errs []error
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

type counts struct {
	mu       sync.Mutex
	verified int
	mismatch map[string]int
	errors   map[string]int
}

func (c *counts) consumer(r MessageReader) *Consumer {
	c.mismatch = map[string]int{}
	c.errors = map[string]int{}
	return &Consumer{
		Log:        zap.NewNop(),
		Reader:     r,
		Params:     params,
		OnVerified: func() { c.mu.Lock(); c.verified++; c.mu.Unlock() },
		OnMismatch: func(reason string) { c.mu.Lock(); c.mismatch[reason]++; c.mu.Unlock() },
		OnError:    func(stage string) { c.mu.Lock(); c.errors[stage]++; c.mu.Unlock() },
	}
}

func message(t *testing.T, ev events.RoundSettled) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte("7"), Value: b}
}

func TestConsumerRun(t *testing.T) {
	bad := settled()
	bad.CrashPoint = 3

	r := &fakeReader{
		errs: []error{errors.New("broker not available")},
		msgs: []kafka.Message{message(t, settled()), {Value: []byte("{")}, message(t, bad)},
	}
	var c counts
	cons := c.consumer(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cons.Run(ctx) }()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.mismatch[ReasonCrashPoint] == 1
	}, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 1, c.verified)
	assert.Equal(t, 1, c.errors["read"])
	assert.Equal(t, 1, c.errors["decode"])
}

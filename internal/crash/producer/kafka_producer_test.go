package producer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash/history"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
	ctopics "github.com/radieske/crash-game-platform/pkg/contracts/topics"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func (f *fakeWriter) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

var testTopics = Topics{
	RoundStarted: ctopics.RoundStarted,
	RoundSettled: ctopics.RoundSettled,
	BetPlaced:    ctopics.BetPlaced,
	BetCancelled: ctopics.BetCancelled,
	BetCashedOut: ctopics.BetCashedOut,
}

func newTestPublisher(buffer int) (*KafkaPublisher, map[string]*fakeWriter) {
	fakes := map[string]*fakeWriter{}
	writers := map[string]MessageWriter{}
	for _, topic := range []string{ctopics.RoundStarted, ctopics.RoundSettled, ctopics.BetPlaced, ctopics.BetCancelled, ctopics.BetCashedOut} {
		f := &fakeWriter{}
		fakes[topic] = f
		writers[topic] = f
	}
	return NewWithWriters(writers, testTopics, zap.NewNop(), buffer), fakes
}

func TestRoundSettledCarriesReveal(t *testing.T) {
	p, fakes := newTestPublisher(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	crashed := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	p.RoundSettled(history.Round{
		RoundID:            17,
		SeedCommitmentHash: "abc",
		ServerSeed:         "seed",
		CrashPoint:         3.21,
		CrashedAt:          crashed,
		Bets: []history.Bet{
			{BetID: "b1", Username: "alice", AmountCents: 100, CashedOut: true, CashoutMultiplier: 2, PayoutCents: 200},
			{BetID: "b2", Username: "bob", AmountCents: 50},
		},
	})

	w := fakes[ctopics.RoundSettled]
	require.Eventually(t, func() bool { return w.len() == 1 }, time.Second, 5*time.Millisecond)

	w.mu.Lock()
	msg := w.msgs[0]
	w.mu.Unlock()
	assert.Equal(t, "17", string(msg.Key))

	var ev events.RoundSettled
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "seed", ev.ServerSeed)
	assert.Equal(t, 3.21, ev.CrashPoint)
	assert.True(t, crashed.Equal(ev.CrashedAt))
	require.Len(t, ev.Bets, 2)
	assert.Equal(t, int64(200), ev.Bets[0].PayoutCents)
	assert.False(t, ev.Bets[1].CashedOut)
}

func TestEventsRouteToTheirTopics(t *testing.T) {
	p, fakes := newTestPublisher(8)
	var published sync.Map
	p.OnPublished = func(topic string) { published.Store(topic, true) }

	p.RoundStarted(events.RoundStarted{RoundID: 1})
	p.BetPlaced(events.BetPlaced{RoundID: 1, BetID: "b"})
	p.BetCancelled(events.BetCancelled{RoundID: 1, BetID: "b"})
	p.BetCashedOut(events.BetCashedOut{RoundID: 1, BetID: "b"})

	// contexto já cancelado: Run só descarrega a fila e retorna
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	for _, topic := range []string{ctopics.RoundStarted, ctopics.BetPlaced, ctopics.BetCancelled, ctopics.BetCashedOut} {
		assert.Equal(t, 1, fakes[topic].len(), topic)
		_, ok := published.Load(topic)
		assert.True(t, ok, topic)
	}
	assert.Zero(t, fakes[ctopics.RoundSettled].len())
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	p, _ := newTestPublisher(1)
	var dropped []string
	p.OnDropped = func(topic string) { dropped = append(dropped, topic) }

	p.BetPlaced(events.BetPlaced{RoundID: 1})
	p.BetPlaced(events.BetPlaced{RoundID: 1})

	assert.Equal(t, []string{ctopics.BetPlaced}, dropped)
}

func TestWriteFailureIsCounted(t *testing.T) {
	p, fakes := newTestPublisher(4)
	fakes[ctopics.BetCashedOut].err = errors.New("leader not available")
	var failed []string
	p.OnError = func(topic string) { failed = append(failed, topic) }

	p.BetCashedOut(events.BetCashedOut{RoundID: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	assert.Equal(t, []string{ctopics.BetCashedOut}, failed)
}

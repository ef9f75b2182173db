package history

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Writer grava rodadas encerradas fora do caminho do tick.
// Enqueue nunca bloqueia; falhas são repetidas com backoff exponencial.
type Writer struct {
	store        Store
	log          *zap.Logger
	queue        chan Round
	maxElapsed   time.Duration
	backOff      func() backoff.BackOff
	// prazo para gravar o que ficou pendente no shutdown
	drainTimeout time.Duration

	// callbacks para métricas (setados no main)
	OnWritten func(Round)
	OnFailed  func(Round, error)
	OnDropped func(Round)
}

type WriterOption func(*Writer)

// WithMaxElapsed limita o tempo total de tentativas por rodada
func WithMaxElapsed(d time.Duration) WriterOption {
	return func(w *Writer) { w.maxElapsed = d }
}

// WithBackOff troca a política de espera entre tentativas
func WithBackOff(fn func() backoff.BackOff) WriterOption {
	return func(w *Writer) { w.backOff = fn }
}

func NewWriter(store Store, log *zap.Logger, buffer int, opts ...WriterOption) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	w := &Writer{
		store:        store,
		log:          log,
		queue:        make(chan Round, buffer),
		maxElapsed:   2 * time.Minute,
		drainTimeout: 10 * time.Second,
		backOff:      func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue agenda a gravação; false quando a fila está cheia
func (w *Writer) Enqueue(r Round) bool {
	select {
	case w.queue <- r:
		return true
	default:
		w.log.Error("history queue full, round dropped",
			zap.Int64("round_id", r.RoundID), zap.Int("bets", len(r.Bets)))
		if w.OnDropped != nil {
			w.OnDropped(r)
		}
		return false
	}
}

// Run consome a fila até o contexto acabar; o que sobrou na fila ainda é gravado,
// inclusive a rodada cujo retry foi interrompido pelo shutdown
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case r := <-w.queue:
			if !w.write(ctx, r) {
				w.drain(r)
				return nil
			}
		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

// drain grava pending e o resto da fila com um prazo próprio
func (w *Writer) drain(pending ...Round) {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()
	flush := func(r Round) {
		if !w.write(ctx, r) {
			w.failed(r, ctx.Err(), 0)
		}
	}
	for _, r := range pending {
		flush(r)
	}
	for {
		select {
		case r := <-w.queue:
			flush(r)
		default:
			return
		}
	}
}

// write grava com retry; false quando ctx acabou antes da gravação
// (a rodada continua pendente e o chamador decide o que fazer)
func (w *Writer) write(ctx context.Context, r Round) bool {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, w.store.Append(ctx, r)
	},
		backoff.WithBackOff(w.backOff()),
		backoff.WithMaxElapsedTime(w.maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.log.Warn("history write failed, retrying",
				zap.Int64("round_id", r.RoundID), zap.Int("attempt", attempt),
				zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.failed(r, err, attempt)
		return true
	}
	w.log.Debug("round persisted", zap.Int64("round_id", r.RoundID))
	if w.OnWritten != nil {
		w.OnWritten(r)
	}
	return true
}

func (w *Writer) failed(r Round, err error, attempts int) {
	w.log.Error("history write gave up", zap.Int64("round_id", r.RoundID), zap.Int("attempts", attempts), zap.Error(err))
	if w.OnFailed != nil {
		w.OnFailed(r, err)
	}
}

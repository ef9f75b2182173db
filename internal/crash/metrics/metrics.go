// Package metrics reúne os coletores Prometheus do crash-service.
// Os métodos são usados como callbacks nos hooks do motor e dos workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/crash-game-platform/internal/crash/history"
	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

type Metrics struct {
	roundsStarted prometheus.Counter
	roundsSettled prometheus.Counter
	crashPoints   prometheus.Histogram
	multiplier    prometheus.Gauge

	betsPlaced    prometheus.Counter
	betsCancelled prometheus.Counter
	cashOuts      prometheus.Counter
	wagered       prometheus.Counter
	refunded      prometheus.Counter
	paidOut       prometheus.Counter
	rejected      *prometheus.CounterVec
	creditFailed  *prometheus.CounterVec

	historyWrites *prometheus.CounterVec
	events        *prometheus.CounterVec
	broadcasts    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_rounds_started_total", Help: "rodadas que entraram em running"}),
		roundsSettled: prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_rounds_settled_total", Help: "rodadas encerradas (crash)"}),
		crashPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crash_point",
			Help:    "distribuição dos crash points revelados",
			Buckets: []float64{1, 1.01, 1.5, 2, 3, 5, 10, 25, 100, 1000},
		}),
		multiplier:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "crash_current_multiplier", Help: "multiplicador da rodada ativa"}),
		betsPlaced:    prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_bets_placed_total", Help: "apostas aceitas"}),
		betsCancelled: prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_bets_cancelled_total", Help: "apostas canceladas em waiting"}),
		cashOuts:      prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_cashouts_total", Help: "cash-outs capturados"}),
		wagered:       prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_wagered_cents_total", Help: "valor apostado (centavos)"}),
		refunded:      prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_refunded_cents_total", Help: "valor devolvido em cancelamentos (centavos)"}),
		paidOut:       prometheus.NewCounter(prometheus.CounterOpts{Name: "crash_paid_out_cents_total", Help: "prêmios devidos em cash-outs (centavos)"}),
		rejected:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "crash_rejected_total", Help: "operações recusadas por código"}, []string{"op", "code"}),
		creditFailed:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "crash_credit_failures_total", Help: "créditos devidos que a carteira recusou, por tipo"}, []string{"kind"}),
		historyWrites: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "crash_history_writes_total", Help: "gravações de histórico por resultado"}, []string{"result"}),
		events:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "crash_events_total", Help: "eventos Kafka por tópico e resultado"}, []string{"topic", "result"}),
		broadcasts:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "crash_broadcasts_total", Help: "publicações de estado por resultado"}, []string{"result"}),
	}
	reg.MustRegister(
		m.roundsStarted, m.roundsSettled, m.crashPoints, m.multiplier,
		m.betsPlaced, m.betsCancelled, m.cashOuts, m.wagered, m.refunded, m.paidOut, m.rejected, m.creditFailed,
		m.historyWrites, m.events, m.broadcasts,
	)
	return m
}

func (m *Metrics) RoundStarted(events.RoundStarted) { m.roundsStarted.Inc() }

func (m *Metrics) RoundSettled(r history.Round) {
	m.roundsSettled.Inc()
	m.crashPoints.Observe(r.CrashPoint)
}

func (m *Metrics) Multiplier(v float64) { m.multiplier.Set(v) }

func (m *Metrics) BetPlaced(e events.BetPlaced) {
	m.betsPlaced.Inc()
	m.wagered.Add(float64(e.AmountCents))
}

func (m *Metrics) BetCancelled(e events.BetCancelled) {
	m.betsCancelled.Inc()
	m.refunded.Add(float64(e.AmountCents))
}

func (m *Metrics) CashOut(e events.BetCashedOut) {
	m.cashOuts.Inc()
	m.paidOut.Add(float64(e.PayoutCents))
}

func (m *Metrics) Rejected(op string, code apperr.Code) {
	m.rejected.WithLabelValues(op, string(code)).Inc()
}

func (m *Metrics) CreditFailed(kind string) { m.creditFailed.WithLabelValues(kind).Inc() }

func (m *Metrics) HistoryWrite(result string) { m.historyWrites.WithLabelValues(result).Inc() }

func (m *Metrics) Event(topic, result string) { m.events.WithLabelValues(topic, result).Inc() }

func (m *Metrics) Broadcast(result string) { m.broadcasts.WithLabelValues(result).Inc() }

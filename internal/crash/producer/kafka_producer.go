package producer

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash/history"
	skafka "github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// MessageWriter é o subconjunto de *kafka.Writer usado pelo publisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Topics são os nomes dos tópicos de domínio
type Topics struct {
	RoundStarted string
	RoundSettled string
	BetPlaced    string
	BetCancelled string
	BetCashedOut string
}

type envelope struct {
	topic string
	msg   kafka.Message
}

// KafkaPublisher publica os eventos do motor de crash.
// Os métodos de evento são chamados pelos hooks do motor e só enfileiram;
// Run faz a escrita no Kafka.
type KafkaPublisher struct {
	log     *zap.Logger
	topics  Topics
	writers map[string]MessageWriter
	queue   chan envelope

	OnPublished func(topic string) // métricas
	OnError     func(topic string)
	OnDropped   func(topic string)
}

// NewKafkaPublisher cria um writer por tópico a partir da lista de brokers
func NewKafkaPublisher(brokers string, t Topics, log *zap.Logger, buffer int) *KafkaPublisher {
	writers := map[string]MessageWriter{}
	for _, topic := range []string{t.RoundStarted, t.RoundSettled, t.BetPlaced, t.BetCancelled, t.BetCashedOut} {
		writers[topic] = skafka.NewWriter(brokers, topic)
	}
	return NewWithWriters(writers, t, log, buffer)
}

// NewWithWriters permite injetar writers (testes, tópicos em clusters diferentes)
func NewWithWriters(writers map[string]MessageWriter, t Topics, log *zap.Logger, buffer int) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &KafkaPublisher{
		log:     log,
		topics:  t,
		writers: writers,
		queue:   make(chan envelope, buffer),
	}
}

func (p *KafkaPublisher) RoundStarted(e events.RoundStarted) {
	p.emit(p.topics.RoundStarted, roundKey(e.RoundID), e)
}

// RoundSettled publica a revelação da rodada com o resultado final de cada aposta
func (p *KafkaPublisher) RoundSettled(r history.Round) {
	ev := events.RoundSettled{
		RoundID:            r.RoundID,
		SeedCommitmentHash: r.SeedCommitmentHash,
		ServerSeed:         r.ServerSeed,
		CrashPoint:         r.CrashPoint,
		StartedAt:          r.StartedAt,
		CrashedAt:          r.CrashedAt,
		Bets:               make([]events.SettledBet, 0, len(r.Bets)),
	}
	for _, b := range r.Bets {
		ev.Bets = append(ev.Bets, events.SettledBet{
			BetID:             b.BetID,
			Username:          b.Username,
			AmountCents:       b.AmountCents,
			CashedOut:         b.CashedOut,
			CashoutMultiplier: b.CashoutMultiplier,
			PayoutCents:       b.PayoutCents,
		})
	}
	p.emit(p.topics.RoundSettled, roundKey(r.RoundID), ev)
}

func (p *KafkaPublisher) BetPlaced(e events.BetPlaced) {
	p.emit(p.topics.BetPlaced, roundKey(e.RoundID), e)
}

func (p *KafkaPublisher) BetCancelled(e events.BetCancelled) {
	p.emit(p.topics.BetCancelled, roundKey(e.RoundID), e)
}

func (p *KafkaPublisher) BetCashedOut(e events.BetCashedOut) {
	p.emit(p.topics.BetCashedOut, roundKey(e.RoundID), e)
}

func (p *KafkaPublisher) emit(topic, key string, payload any) {
	msg, err := skafka.NewJSONMessage(key, payload)
	if err != nil {
		p.log.Error("encode event", zap.String("topic", topic), zap.Error(err))
		p.count(p.OnError, topic)
		return
	}
	select {
	case p.queue <- envelope{topic: topic, msg: msg}:
	default:
		p.log.Warn("event queue full, dropping", zap.String("topic", topic), zap.String("key", key))
		p.count(p.OnDropped, topic)
	}
}

// Run escreve os eventos enfileirados até o contexto acabar e então
// descarrega o que sobrou com um prazo curto
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-p.queue:
			p.write(ctx, e)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case e := <-p.queue:
					p.write(flushCtx, e)
				default:
					return nil
				}
			}
		}
	}
}

func (p *KafkaPublisher) write(ctx context.Context, e envelope) {
	w, ok := p.writers[e.topic]
	if !ok {
		p.log.Error("no writer for topic", zap.String("topic", e.topic))
		p.count(p.OnError, e.topic)
		return
	}
	if err := w.WriteMessages(ctx, e.msg); err != nil {
		p.log.Error("failed to publish event", zap.String("topic", e.topic), zap.Error(err))
		p.count(p.OnError, e.topic)
		return
	}
	p.log.Debug("published event", zap.String("topic", e.topic), zap.ByteString("key", e.msg.Key))
	p.count(p.OnPublished, e.topic)
}

// Close finaliza os writers e libera recursos associados
func (p *KafkaPublisher) Close() error {
	var first error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *KafkaPublisher) count(fn func(string), topic string) {
	if fn != nil {
		fn(topic)
	}
}

func roundKey(id int64) string { return strconv.FormatInt(id, 10) }

package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroadcaster publica o snapshot público da rodada no canal Pub/Sub e
// mantém a última versão numa chave, para instâncias que acabaram de subir.
//
// Offer é chamado no tick e nunca bloqueia: guarda só o snapshot mais recente
// e a goroutine de Run publica no ritmo que o Redis aguentar.
type RedisBroadcaster struct {
	r        *redis.Client
	log      *zap.Logger
	channel  string
	stateKey string
	ttl      time.Duration

	latest chan []byte

	OnPublished func()
	OnError     func()
}

func NewRedisBroadcaster(r *redis.Client, log *zap.Logger, channel, stateKey string) *RedisBroadcaster {
	return &RedisBroadcaster{
		r:        r,
		log:      log,
		channel:  channel,
		stateKey: stateKey,
		ttl:      time.Minute,
		latest:   make(chan []byte, 1),
	}
}

// Offer serializa o snapshot e substitui qualquer um ainda não publicado
func (b *RedisBroadcaster) Offer(snapshot any) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		b.log.Error("marshal crash state", zap.Error(err))
		return
	}
	for {
		select {
		case b.latest <- payload:
			return
		default:
		}
		// descarta o antigo; outro Offer pode ter esvaziado a fila entre os selects
		select {
		case <-b.latest:
		default:
		}
	}
}

// Run publica os snapshots oferecidos até o contexto acabar
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-b.latest:
			if err := b.Publish(ctx, payload); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				b.log.Warn("redis publish failed", zap.String("channel", b.channel), zap.Error(err))
				if b.OnError != nil {
					b.OnError()
				}
				continue
			}
			if b.OnPublished != nil {
				b.OnPublished()
			}
		}
	}
}

// Publish grava a chave de estado e publica no canal numa única ida ao Redis
func (b *RedisBroadcaster) Publish(ctx context.Context, payload []byte) error {
	_, err := b.r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, b.stateKey, payload, b.ttl)
		p.Publish(ctx, b.channel, payload)
		return nil
	})
	return err
}

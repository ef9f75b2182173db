package ws

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal Redis Pub/Sub e repassa cada snapshot
// recebido para os clientes WebSocket conectados via Hub.
//
// Antes de assinar, carrega o último estado salvo em stateKey para que o hub
// já tenha algo a mandar para quem conectar antes do próximo tick.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel, stateKey string, hub *Hub, log *zap.Logger) {
	if b, err := r.Get(ctx, stateKey).Bytes(); err == nil {
		hub.Broadcast(Frame(b))
	} else if !errors.Is(err, redis.Nil) {
		log.Warn("load last crash state failed", zap.String("key", stateKey), zap.Error(err))
	}

	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				hub.Broadcast(Frame([]byte(msg.Payload)))
			}
		}
	}()
	log.Info("ws redis subscriber started", zap.String("channel", channel))
}

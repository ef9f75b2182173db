package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer = 16
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// client é uma conexão com fila própria de envio; quem escreve no socket é
// só a goroutine writePump
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub gerencia conexões WebSocket e distribui o estado público da rodada.
// Todos os clientes recebem o mesmo snapshot; nada por usuário passa aqui.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte // último frame, enviado a quem acabou de conectar

	OnDropped func() // métricas: frame descartado por cliente lento
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		clients:  make(map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// Clients retorna quantas conexões estão ativas
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast envia o frame a todos os clientes sem bloquear;
// cliente com fila cheia perde o frame (o próximo tick traz o estado inteiro)
func (h *Hub) Broadcast(frame []byte) {
	dropped := 0
	// envio não bloqueante sob o lock: remove() não fecha a fila no meio
	h.mu.Lock()
	h.last = frame
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if h.OnDropped != nil {
		for i := 0; i < dropped; i++ {
			h.OnDropped()
		}
	}
}

// BroadcastJSON serializa v como payload de crash_state
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("ws marshal failed", zap.Error(err))
		return
	}
	h.Broadcast(Frame(b))
}

func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMsg
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			h.enqueue(c, mustJSON(ServerMsg{Type: TypePong}))
		case "state":
			h.mu.RLock()
			last := h.last
			h.mu.RUnlock()
			if last != nil {
				h.enqueue(c, last)
			}
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) enqueue(c *client, frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

// remove tira a conexão do hub e encerra o writePump
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: ping | state
type ClientMsg struct {
	Type string `json:"type"`
}

// ServerMsg é o envelope de tudo que o hub envia
// Type: crash_state | pong
type ServerMsg struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeState = "crash_state"
	TypePong  = "pong"
)

// Frame monta o envelope crash_state a partir do snapshot já serializado
func Frame(snapshot []byte) []byte {
	b, _ := json.Marshal(ServerMsg{Type: TypeState, Payload: snapshot})
	return b
}

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func allowAll(*http.Request) bool { return true }

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) ServerMsg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ServerMsg
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestBroadcastReachesConnectedClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	hub.BroadcastJSON(map[string]any{"roundId": 3, "status": "running", "multiplier": 1.42})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMsg(t, conn)
		assert.Equal(t, TypeState, msg.Type)
		assert.JSONEq(t, `{"roundId":3,"status":"running","multiplier":1.42}`, string(msg.Payload))
	}
}

func TestLateClientGetsLastState(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	hub.Broadcast(Frame([]byte(`{"roundId":9,"status":"waiting"}`)))

	conn := dial(t, srv)
	msg := readMsg(t, conn)
	assert.Equal(t, TypeState, msg.Type)
	assert.JSONEq(t, `{"roundId":9,"status":"waiting"}`, string(msg.Payload))

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "state"}))
	msg = readMsg(t, conn)
	assert.JSONEq(t, `{"roundId":9,"status":"waiting"}`, string(msg.Payload))
}

func TestPingPong(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	assert.Equal(t, TypePong, readMsg(t, conn).Type)
}

func TestDisconnectRemovesClient(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)

	// sem clientes, broadcast continua não bloqueante
	hub.Broadcast(Frame(json.RawMessage(`{}`)))
}

package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"netpong/config"
	"netpong/protocol"
)

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	log := zap.NewNop().Sugar()
	reg := NewRegistry(Options{Logger: log})
	srv := httptest.NewServer(NewGateway(reg, config.Default().Server, log))
	t.Cleanup(func() {
		srv.Close()
		_ = reg.Shutdown(context.Background())
	})
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v map[string]any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

// readUntil 读取消息直到出现指定类型，跳过期间的其它消息（如 game_state）
func readUntil(t *testing.T, ws *websocket.Conn, kind string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, b, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", kind)
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		if m["type"] == kind {
			return m
		}
	}
}

func TestGateway_Session(t *testing.T) {
	srv, reg := newTestServer(t)

	host := dial(t, srv)
	hello := readUntil(t, host, protocol.KindConnected)
	hostID, _ := hello["player_id"].(string)
	require.NotEmpty(t, hostID)

	send(t, host, map[string]any{"type": "create_room", "player_name": "Alice"})
	created := readUntil(t, host, protocol.KindRoomCreated)
	code, _ := created["room_code"].(string)
	require.Len(t, code, CodeLength)
	assert.Equal(t, hostID, created["player_id"])

	guest := dial(t, srv)
	readUntil(t, guest, protocol.KindConnected)
	send(t, guest, map[string]any{"type": "join_room", "room_code": strings.ToLower(code), "player_name": "Bob"})
	joined := readUntil(t, guest, protocol.KindRoomJoined)
	assert.Equal(t, code, joined["room_code"])

	pj := readUntil(t, host, protocol.KindPlayerJoined)
	assert.Equal(t, "Bob", pj["player_name"])

	state := readUntil(t, guest, protocol.KindGameState)
	assert.Equal(t, "playing", state["state"])

	send(t, guest, map[string]any{"type": "ping", "timestamp": 99})
	pong := readUntil(t, guest, protocol.KindPong)
	assert.Equal(t, 99.0, pong["client_timestamp"])

	send(t, guest, map[string]any{"type": "disconnect"})
	gone := readUntil(t, host, protocol.KindPlayerDisconnected)
	assert.NotEmpty(t, gone["player_id"])

	require.Eventually(t, func() bool {
		_, ok := reg.RoomOf(hostID)
		return ok && len(reg.Rooms()) == 1 && reg.Rooms()[0].State == "finished"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_InvalidMessage(t *testing.T) {
	srv, reg := newTestServer(t)
	ws := dial(t, srv)
	readUntil(t, ws, protocol.KindConnected)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	e := readUntil(t, ws, protocol.KindError)
	assert.Equal(t, "Invalid message", e["message"])

	send(t, ws, map[string]any{"type": "teleport"})
	readUntil(t, ws, protocol.KindError)
	assert.EqualValues(t, 2, reg.Metrics().Snapshot()["invalid_messages"])

	// 连接仍然可用
	send(t, ws, map[string]any{"type": "join_room", "room_code": "QQQQ"})
	e = readUntil(t, ws, protocol.KindError)
	assert.Equal(t, "Room not found", e["message"])
}

func TestGateway_CloseCleansUpRoom(t *testing.T) {
	srv, reg := newTestServer(t)
	ws := dial(t, srv)
	readUntil(t, ws, protocol.KindConnected)
	send(t, ws, map[string]any{"type": "create_room"})
	created := readUntil(t, ws, protocol.KindRoomCreated)
	code, _ := created["room_code"].(string)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool {
		_, ok := reg.Lookup(code)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientConn_SendQueueFull(t *testing.T) {
	c := &ClientConn{send: make(chan []byte, 1)}
	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrSendQueueFull)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send([]byte("c")), ErrConnClosed)
}

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"netpong/game"
)

// 出站消息类型（服务端 → 客户端）
const (
	KindConnected          = "connected"
	KindRoomCreated        = "room_created"
	KindRoomJoined         = "room_joined"
	KindPlayerJoined       = "player_joined"
	KindGameState          = "game_state"
	KindScoreEvent         = "score_event"
	KindGameOver           = "game_over"
	KindPlayerDisconnected = "player_disconnected"
	KindPong               = "pong"
	KindError              = "error"
)

// Outbound 出站消息的封闭集合
type Outbound interface {
	Kind() string
	outbound()
}

type Connected struct {
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
}

type RoomCreated struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
}

type RoomJoined struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
}

type PlayerJoined struct {
	PlayerName string `json:"player_name"`
}

// GameState 每个 Tick 广播的快照，字段平铺在消息顶层
type GameState struct {
	game.Snapshot
}

type ScoreEvent struct{}

type GameOver struct {
	Winner string `json:"winner"`
}

type PlayerDisconnected struct {
	PlayerID string `json:"player_id"`
}

// Pong 传输层回显，不属于模拟核心
type Pong struct {
	ClientTimestamp float64 `json:"client_timestamp"`
	ServerTimestamp float64 `json:"server_timestamp"`
}

type Error struct {
	Message string `json:"message"`
}

func (Connected) Kind() string          { return KindConnected }
func (RoomCreated) Kind() string        { return KindRoomCreated }
func (RoomJoined) Kind() string         { return KindRoomJoined }
func (PlayerJoined) Kind() string       { return KindPlayerJoined }
func (GameState) Kind() string          { return KindGameState }
func (ScoreEvent) Kind() string         { return KindScoreEvent }
func (GameOver) Kind() string           { return KindGameOver }
func (PlayerDisconnected) Kind() string { return KindPlayerDisconnected }
func (Pong) Kind() string               { return KindPong }
func (Error) Kind() string              { return KindError }

func (Connected) outbound()          {}
func (RoomCreated) outbound()        {}
func (RoomJoined) outbound()         {}
func (PlayerJoined) outbound()       {}
func (GameState) outbound()          {}
func (ScoreEvent) outbound()         {}
func (GameOver) outbound()           {}
func (PlayerDisconnected) outbound() {}
func (Pong) outbound()               {}
func (Error) outbound()              {}

// Encode 序列化为 {"type": kind, ...payload} 形式的 JSON 文本
func Encode(m Outbound) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("trying to encode nil message")
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: payload is not an object", m.Kind())
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(m.Kind()) + 12)
	buf.WriteString(`{"type":`)
	buf.WriteString(strconv.Quote(m.Kind()))
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// 入站消息类型（客户端 → 服务端）
const (
	KindCreateRoom    = "create_room"
	KindJoinRoom      = "join_room"
	KindPaddleInput   = "paddle_input"
	KindPing          = "ping"
	KindLatencyUpdate = "latency_update"
	KindDisconnect    = "disconnect"
)

// DefaultPlayerName 客户端未提供名字时使用
const DefaultPlayerName = "Player"

// MaxNameLength 玩家名最多保留的字符数
const MaxNameLength = 24

var (
	ErrEmptyMessage = errors.New("protocol: empty message")
	ErrUnknownKind  = errors.New("protocol: unknown message type")
)

// Inbound 入站消息的封闭集合，只有本包内的类型可以实现
type Inbound interface {
	Kind() string
	inbound()
}

type CreateRoom struct {
	PlayerName string `json:"player_name"`
}

type JoinRoom struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

// PaddleInput direction 取 -1、0、1；其它值只保留符号
type PaddleInput struct {
	Direction float64 `json:"direction"`
}

// Ping 客户端时间戳（毫秒），原样回显
type Ping struct {
	Timestamp float64 `json:"timestamp"`
}

type LatencyUpdate struct {
	LatencyMs float64 `json:"latency_ms"`
}

type Disconnect struct{}

func (CreateRoom) Kind() string    { return KindCreateRoom }
func (JoinRoom) Kind() string      { return KindJoinRoom }
func (PaddleInput) Kind() string   { return KindPaddleInput }
func (Ping) Kind() string          { return KindPing }
func (LatencyUpdate) Kind() string { return KindLatencyUpdate }
func (Disconnect) Kind() string    { return KindDisconnect }

func (CreateRoom) inbound()    {}
func (JoinRoom) inbound()      {}
func (PaddleInput) inbound()   {}
func (Ping) inbound()          {}
func (LatencyUpdate) inbound() {}
func (Disconnect) inbound()    {}

type envelope struct {
	Type string `json:"type"`
}

// Decode 在传输边界把 JSON 文本解析为具体的入站消息
func Decode(b []byte) (Inbound, error) {
	if len(b) == 0 {
		return nil, ErrEmptyMessage
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case KindCreateRoom:
		return decodeAs(b, func(m *CreateRoom) {
			m.PlayerName = NormalizeName(m.PlayerName)
		})
	case KindJoinRoom:
		return decodeAs(b, func(m *JoinRoom) {
			m.RoomCode = strings.ToUpper(strings.TrimSpace(m.RoomCode))
			m.PlayerName = NormalizeName(m.PlayerName)
		})
	case KindPaddleInput:
		return decodeAs[PaddleInput](b, nil)
	case KindPing:
		return decodeAs[Ping](b, nil)
	case KindLatencyUpdate:
		return decodeAs[LatencyUpdate](b, nil)
	case KindDisconnect:
		return Disconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// decodeAs 解析为具体类型 T，fix 用于解析后的规范化
func decodeAs[T Inbound](b []byte, fix func(*T)) (Inbound, error) {
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", out.Kind(), err)
	}
	if fix != nil {
		fix(&out)
	}
	return out, nil
}

// NormalizeName 去掉首尾空白，截断过长的名字，空名使用默认值
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultPlayerName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}

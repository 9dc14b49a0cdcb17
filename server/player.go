package server

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrMatchFinished = errors.New("match already finished")
	ErrSendQueueFull = errors.New("send queue full")
	ErrConnClosed    = errors.New("connection closed")
	ErrAlreadyInRoom = errors.New("player already in a room")
	ErrNoCodeFree    = errors.New("no free room code")
)

// Outbound 玩家的出站通道；Send 不得阻塞 Tick（满则返回错误）
type Outbound interface {
	Send(b []byte) error
}

// member 注册表中某个玩家的绑定：所在房间与出站通道
type member struct {
	code string
	out  Outbound
}

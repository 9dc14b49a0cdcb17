package server

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"netpong/protocol"
)

// errClientQuit 客户端主动发送 disconnect，读循环据此退出
var errClientQuit = errors.New("client requested disconnect")

// client 单个连接的入站处理：把协议消息路由到注册表
type client struct {
	id  string
	out Outbound
	reg *Registry
	log *zap.SugaredLogger
	now func() time.Time
}

func newClient(id string, out Outbound, reg *Registry, log *zap.SugaredLogger) *client {
	return &client{
		id:  id,
		out: out,
		reg: reg,
		log: log.With("player_id", id),
		now: time.Now,
	}
}

// handle 处理一条已解码的消息；只有客户端请求断开时返回错误
func (c *client) handle(msg protocol.Inbound) error {
	switch m := msg.(type) {
	case protocol.CreateRoom:
		code, err := c.reg.Create(c.id, m.PlayerName, c.out)
		if err != nil {
			c.reply(protocol.Error{Message: errorMessage(err)})
			return nil
		}
		c.reply(protocol.RoomCreated{RoomCode: code, PlayerID: c.id})

	case protocol.JoinRoom:
		if err := c.reg.Join(m.RoomCode, c.id, m.PlayerName, c.out); err != nil {
			c.reply(protocol.Error{Message: errorMessage(err)})
			return nil
		}
		c.reply(protocol.RoomJoined{RoomCode: m.RoomCode, PlayerID: c.id})
		_ = c.reg.Broadcast(m.RoomCode, protocol.PlayerJoined{PlayerName: m.PlayerName}, c.id)

	case protocol.PaddleInput:
		c.reg.ApplyInput(c.id, m.Direction)

	case protocol.Ping:
		c.reply(protocol.Pong{
			ClientTimestamp: m.Timestamp,
			ServerTimestamp: float64(c.now().UnixMilli()),
		})

	case protocol.LatencyUpdate:
		c.reg.RecordLatency(c.id, m.LatencyMs)

	case protocol.Disconnect:
		return errClientQuit
	}
	return nil
}

// reply 直接回复本连接，不经过房间
func (c *client) reply(msg protocol.Outbound) {
	b, err := protocol.Encode(msg)
	if err != nil {
		c.log.Errorw("encode reply", "type", msg.Kind(), "error", err)
		return
	}
	if err := c.out.Send(b); err != nil {
		c.reg.metrics.IncSendFailures()
		c.log.Warnw("reply failed", "type", msg.Kind(), "error", err)
	}
}

// errorMessage 注册表错误 → 返回给客户端的提示
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrMatchFinished):
		return "Match already finished"
	case errors.Is(err, ErrAlreadyInRoom):
		return "Already in a room"
	}
	return "Request failed"
}

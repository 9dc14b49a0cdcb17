package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"netpong/config"
	"netpong/protocol"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 1 << 16
)

// ClientConn 一个 WebSocket 连接：发送走有界队列，由写协程独占写出
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool

	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewClientConn(ws *websocket.Conn, cfg config.ServerConfig) *ClientConn {
	size := cfg.SendQueueSize
	if size <= 0 {
		size = 64
	}
	return &ClientConn{
		ws:         ws,
		send:       make(chan []byte, size),
		pingPeriod: cfg.PingPeriod,
		pongWait:   cfg.PongWait,
	}
}

// Send 非阻塞入队；队列满或连接已关闭时返回错误，绝不阻塞 Tick
func (c *ClientConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close 关闭发送队列，写协程发出 close 帧后关闭底层连接；可重复调用
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息并交给 client 处理；退出时先离开房间再关闭发送队列
func (c *ClientConn) readPump(cl *client) {
	defer func() {
		cl.reg.Disconnect(cl.id)
		c.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.log.Debugw("read failed", "error", err)
			}
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			cl.reg.metrics.IncInvalidMessages()
			cl.log.Debugw("invalid message", "error", err)
			cl.reply(protocol.Error{Message: "Invalid message"})
			continue
		}
		if err := cl.handle(msg); errors.Is(err, errClientQuit) {
			return
		}
	}
}

// Gateway WebSocket 接入：每个连接分配一个玩家 ID，启动读写协程
type Gateway struct {
	reg      *Registry
	cfg      config.ServerConfig
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewGateway(reg *Registry, cfg config.ServerConfig, log *zap.SugaredLogger) *Gateway {
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 25 * time.Second
	}
	if cfg.PongWait <= cfg.PingPeriod {
		cfg.PongWait = cfg.PingPeriod * 12 / 5
	}
	return &Gateway{
		reg: reg,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 允许所有来源（浏览器客户端与服务端不同源）
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnw("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	conn := NewClientConn(ws, g.cfg)
	cl := newClient(id, conn, g.reg, g.log)
	cl.log.Infow("client connected", "remote", r.RemoteAddr)

	go conn.writePump()
	cl.reply(protocol.Connected{PlayerID: id, Message: "Connected to NetPong server"})
	go conn.readPump(cl)
}

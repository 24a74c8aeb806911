package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
	"github.com/DauBapp/WebCoCaro-DACN/internal/service"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	id       string // 每个连接一个新的 UUID
	userID   string
	userName string
	send     chan []byte
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, userID, userName string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		id:       uuid.NewString(),
		userID:   userID,
		userName: userName,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) ID() string { return c.id }

func (c *Client) caller() service.Caller {
	return service.Caller{ConnectionID: c.id, UserID: c.userID, UserName: c.userName}
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"conn_id": c.id, "user_id": c.userID})
}

// enqueue 调用方持有 hub.mu 读锁
func (c *Client) enqueue(payload []byte, eventType string) {
	select {
	case c.send <- payload:
	default:
		c.logCtx().WithField("event", eventType).Warn("Client send channel full, message dropped")
	}
}

// ReadPump 读取客户端命令并按到达顺序同步交给 dispatcher。
// 同一连接的命令不会并发执行。
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.logCtx().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := context.Background()
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.handleMessage(ctx, message)
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var cmd dto.Command
	if err := json.Unmarshal(message, &cmd); err != nil || cmd.Type == "" {
		c.logCtx().WithError(err).Debugf("Invalid command payload (size: %d)", len(message))
		c.hub.SendToConnection(c.id, dto.NewEvent(dto.EvtError, dto.Error{
			Code:    service.CodeInvalidMessage,
			Message: "message must be a JSON object with a type field",
		}))
		return
	}
	if !c.hub.allow(ctx, c) {
		c.hub.SendToConnection(c.id, dto.NewEvent(dto.EvtError, dto.Error{
			Code:    service.CodeRateLimited,
			Message: service.ErrRateLimited.Error(),
		}))
		return
	}
	c.hub.dispatcher.Handle(ctx, c.caller(), cmd)
}

// WritePump 将消息从 send 通道写到 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logCtx().Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了 send 通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

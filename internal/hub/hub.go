package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
	"github.com/DauBapp/WebCoCaro-DACN/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Dispatcher 处理客户端命令和断线。由 service.GameService 实现。
type Dispatcher interface {
	Handle(ctx context.Context, caller service.Caller, cmd dto.Command)
	Disconnect(ctx context.Context, caller service.Caller)
}

// HubMessage 在 Hub 内部通道传递的注册/注销消息
type HubMessage struct {
	Type   string // "register", "unregister"
	Client *Client
}

// Hub 维护在线连接，按连接 ID 和用户 ID 索引，并实现 service.Notifier。
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{} // Run 退出时关闭

	mu      sync.RWMutex
	clients map[string]*Client
	users   map[string]map[string]*Client

	dispatcher Dispatcher

	limiter    repository.StateRepository // 为 nil 时不限流
	rateLimit  int
	rateWindow time.Duration
}

var _ service.Notifier = (*Hub)(nil)

// NewHub 创建 Hub。limiter 为 nil 或 rateLimit 非正数时不对命令限流。
func NewHub(limiter repository.StateRepository, rateLimit int, rateWindow time.Duration) *Hub {
	if rateWindow <= 0 {
		rateWindow = time.Second
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		clients:     make(map[string]*Client),
		users:       make(map[string]map[string]*Client),
		limiter:     limiter,
		rateLimit:   rateLimit,
		rateWindow:  rateWindow,
	}
}

// SetDispatcher 注入命令处理者，必须在 Run 之前调用
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Run 启动 Hub 的主事件循环，ctx 取消时关闭所有连接后返回。
func (h *Hub) Run(ctx context.Context) {
	if h.dispatcher == nil {
		panic("Dispatcher must be set before Hub.Run")
	}
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(ctx, msg.Client)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			log.Info("Hub is shutting down...")
			return
		}
	}
}

// Register 把新连接交给 Hub，队列满时返回 false
func (h *Hub) Register(client *Client) bool {
	return h.queueMessage(HubMessage{Type: "register", Client: client})
}

// registerClient 登记连接并启动读写泵。先登记再启动，保证第一条命令的回包有处可投。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.id, "user_id": client.userID})

	h.mu.Lock()
	h.clients[client.id] = client
	if client.userID != "" {
		if h.users[client.userID] == nil {
			h.users[client.userID] = make(map[string]*Client)
		}
		h.users[client.userID][client.id] = client
	}
	h.mu.Unlock()

	client.Run()
	h.SendToConnection(client.id, dto.NewEvent(dto.EvtConnected, dto.Connected{
		ConnectionID: client.id,
		UserID:       client.userID,
		UserName:     client.userName,
	}))
	logCtx.Info("Client registered to Hub")
}

// unregisterClient 移除连接、关闭其发送通道，并把断线交给 dispatcher 当作离开房间处理
func (h *Hub) unregisterClient(ctx context.Context, client *Client) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.id, "user_id": client.userID})

	h.mu.Lock()
	cur, ok := h.clients[client.id]
	if ok && cur == client {
		delete(h.clients, client.id)
		if conns := h.users[client.userID]; conns != nil {
			delete(conns, client.id)
			if len(conns) == 0 {
				delete(h.users, client.userID)
			}
		}
		// 发送都在读锁下进行，这里持有写锁关闭通道不会与发送竞争
		close(client.send)
	}
	h.mu.Unlock()

	if !ok {
		logCtx.Warn("Client not found during unregister")
		return
	}
	logCtx.Info("Client unregistered from Hub")

	go h.dispatcher.Disconnect(context.WithoutCancel(ctx), client.caller())
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.users = make(map[string]map[string]*Client)
}

// allow 检查连接的命令频率，限流存储出错时放行
func (h *Hub) allow(ctx context.Context, client *Client) bool {
	if h.limiter == nil || h.rateLimit <= 0 {
		return true
	}
	exceeded, err := h.limiter.CheckRateLimit(ctx, "ws:"+client.id, h.rateLimit, h.rateWindow)
	if err != nil {
		logrus.WithError(err).WithField("conn_id", client.id).Warn("WebSocket rate limit check failed, allowing command")
		return true
	}
	return !exceeded
}

// --- service.Notifier ---

// SendToConnection 非阻塞地投递给单个连接，发送队列满时丢弃
func (h *Hub) SendToConnection(connID string, event dto.Event) {
	h.SendToConnections([]string{connID}, event)
}

// SendToConnections 投递给一组连接，事件只序列化一次
func (h *Hub) SendToConnections(connIDs []string, event dto.Event) {
	payload, ok := marshalEvent(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if c, ok := h.clients[id]; ok {
			c.enqueue(payload, event.Type)
		}
	}
}

// SendToUser 投递给该用户的所有连接
func (h *Hub) SendToUser(userID string, event dto.Event) bool {
	payload, ok := marshalEvent(event)
	if !ok {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.users[userID]
	for _, c := range conns {
		c.enqueue(payload, event.Type)
	}
	return len(conns) > 0
}

// Broadcast 投递给所有在线连接
func (h *Hub) Broadcast(event dto.Event) {
	payload, ok := marshalEvent(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(payload, event.Type)
	}
}

// ClientCount 在线连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func marshalEvent(event dto.Event) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("event", event.Type).Error("Failed to marshal event")
		return nil, false
	}
	return payload, true
}

// unregister 把注销交给 Hub。队列满时一直等待，只有 Hub 停止才放弃，
// 否则断线不会被当作离开房间处理。
func (h *Hub) unregister(client *Client) {
	select {
	case h.messageChan <- HubMessage{Type: "unregister", Client: client}:
	case <-h.done:
	}
}

// queueMessage 非阻塞地放入 Hub 的处理队列
func (h *Hub) queueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

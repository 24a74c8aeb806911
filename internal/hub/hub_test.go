package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository/mocks"
	"github.com/DauBapp/WebCoCaro-DACN/internal/service"
)

type fakeDispatcher struct {
	cmds        chan dto.Command
	disconnects chan service.Caller
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		cmds:        make(chan dto.Command, 16),
		disconnects: make(chan service.Caller, 16),
	}
}

func (d *fakeDispatcher) Handle(_ context.Context, _ service.Caller, cmd dto.Command) {
	d.cmds <- cmd
}

func (d *fakeDispatcher) Disconnect(_ context.Context, caller service.Caller) {
	d.disconnects <- caller
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// startHub 启动 Hub 和一个把每个请求升级后注册为 userID 的测试服务器
func startHub(t *testing.T, h *Hub, userID, userName string) (*fakeDispatcher, string) {
	t.Helper()
	d := newFakeDispatcher()
	h.SetDispatcher(d)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Register(NewClient(h, conn, userID, userName))
	}))
	t.Cleanup(srv.Close)
	return d, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) (*websocket.Conn, dto.Connected) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	evt := readEvent(t, conn)
	require.Equal(t, dto.EvtConnected, evt.Type)
	var hello dto.Connected
	require.NoError(t, json.Unmarshal(evt.Data, &hello))
	return conn, hello
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt wireEvent
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestHub_RoutesCommandsAndEvents(t *testing.T) {
	h := NewHub(nil, 0, 0)
	d, url := startHub(t, h, "7", "neo")
	conn, hello := dial(t, url)

	assert.NotEmpty(t, hello.ConnectionID)
	assert.Equal(t, "7", hello.UserID)
	assert.Equal(t, "neo", hello.UserName)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": dto.CmdMakeMove, "roomId": "R1", "row": 0, "col": 3}))
	select {
	case cmd := <-d.cmds:
		assert.Equal(t, "R1", cmd.RoomID)
		require.NotNil(t, cmd.Row)
		assert.Equal(t, 0, *cmd.Row)
		assert.Equal(t, 3, *cmd.Col)
	case <-time.After(2 * time.Second):
		t.Fatal("command was not dispatched")
	}

	assert.True(t, h.SendToUser("7", dto.NewEvent(dto.EvtRoomCreated, dto.RoomCreated{RoomID: "ABC123"})))
	assert.False(t, h.SendToUser("8", dto.NewEvent(dto.EvtRoomCreated, dto.RoomCreated{RoomID: "x"})))
	evt := readEvent(t, conn)
	assert.Equal(t, dto.EvtRoomCreated, evt.Type)
	assert.JSONEq(t, `{"roomId":"ABC123"}`, string(evt.Data))

	h.Broadcast(dto.NewEvent(dto.EvtRoomListUpdated, dto.RoomListUpdated{Rooms: []dto.RoomSummary{}}))
	assert.Equal(t, dto.EvtRoomListUpdated, readEvent(t, conn).Type)
}

func TestHub_InvalidMessage(t *testing.T) {
	h := NewHub(nil, 0, 0)
	d, url := startHub(t, h, "7", "neo")
	conn, _ := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	evt := readEvent(t, conn)
	require.Equal(t, dto.EvtError, evt.Type)
	var e dto.Error
	require.NoError(t, json.Unmarshal(evt.Data, &e))
	assert.Equal(t, service.CodeInvalidMessage, e.Code)
	assert.Empty(t, d.cmds)
}

func TestHub_RateLimited(t *testing.T) {
	limiter := new(mocks.StateRepository)
	limiter.On("CheckRateLimit", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "ws:")
	}), 5, time.Second).Return(true, nil)

	h := NewHub(limiter, 5, time.Second)
	d, url := startHub(t, h, "7", "neo")
	conn, _ := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": dto.CmdGetRoomList}))
	evt := readEvent(t, conn)
	require.Equal(t, dto.EvtError, evt.Type)
	var e dto.Error
	require.NoError(t, json.Unmarshal(evt.Data, &e))
	assert.Equal(t, service.CodeRateLimited, e.Code)
	assert.Empty(t, d.cmds)
	limiter.AssertExpectations(t)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h := NewHub(nil, 0, 0)
	d, url := startHub(t, h, "7", "neo")
	conn, hello := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	select {
	case caller := <-d.disconnects:
		assert.Equal(t, hello.ConnectionID, caller.ConnectionID)
		assert.Equal(t, "7", caller.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not dispatched")
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, h.SendToUser("7", dto.NewEvent(dto.EvtRoomCreated, nil)))
}

// fillQueue 用无效注册塞满 Hub 的处理队列
func fillQueue(h *Hub) {
	for len(h.messageChan) < cap(h.messageChan) {
		h.messageChan <- HubMessage{Type: "register"}
	}
}

func TestHub_UnregisterWaitsForFullQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("waits past the former drop timeout")
	}
	h := NewHub(nil, 0, 0)
	d := newFakeDispatcher()
	h.SetDispatcher(d)

	c := &Client{hub: h, id: "conn-x", userID: "7", send: make(chan []byte, 1)}
	h.clients[c.id] = c
	h.users[c.userID] = map[string]*Client{c.id: c}
	fillQueue(h)

	sent := make(chan struct{})
	go func() {
		h.unregister(c)
		close(sent)
	}()

	// 队列满的时间超过一秒，注销也不能被丢弃
	time.Sleep(1200 * time.Millisecond)
	select {
	case <-sent:
		t.Fatal("unregister returned while the queue was still full")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister was not queued after the hub drained")
	}
	select {
	case caller := <-d.disconnects:
		assert.Equal(t, "conn-x", caller.ConnectionID)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not dispatched")
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_UnregisterReturnsOnShutdown(t *testing.T) {
	h := NewHub(nil, 0, 0)
	h.SetDispatcher(newFakeDispatcher())
	fillQueue(h)

	sent := make(chan struct{})
	go func() {
		h.unregister(&Client{hub: h, id: "conn-y", send: make(chan []byte, 1)})
		close(sent)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister blocked after hub shutdown")
	}
}

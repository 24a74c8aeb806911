package dto

import (
	"time"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
)

// 客户端发来的命令类型
const (
	CmdJoinRoom        = "joinRoom"
	CmdLeaveRoom       = "leaveRoom"
	CmdStartGame       = "startGame"
	CmdMakeMove        = "makeMove"
	CmdResetGame       = "resetGame"
	CmdRequestHistory  = "requestHistory"
	CmdInviteFriend    = "inviteFriend"
	CmdCheckRoomExists = "checkRoomExists"
	CmdGetRoomList     = "getRoomList"
	CmdAcceptInvite    = "acceptInvite"
	CmdInvitePlayer    = "invitePlayer"
	CmdTestConnection  = "testConnection"
)

// 发给客户端的事件类型
const (
	EvtConnected            = "connected"
	EvtPlayerJoined         = "playerJoined"
	EvtPlayerListUpdated    = "playerListUpdated"
	EvtRoomJoined           = "roomJoined"
	EvtPlayerLeft           = "playerLeft"
	EvtGameStarted          = "gameStarted"
	EvtMoveMade             = "moveMade"
	EvtGameEnded            = "gameEnded"
	EvtGameReset            = "gameReset"
	EvtRoomExistsResult     = "roomExistsResult"
	EvtRoomListUpdated      = "roomListUpdated"
	EvtReceiveHistory       = "receiveHistory"
	EvtReceiveGameInvite    = "receiveGameInvite"
	EvtRoomCreated          = "roomCreated"
	EvtInviteAccepted       = "inviteAccepted"
	EvtInviteSuccess        = "inviteSuccess"
	EvtTestConnectionResult = "testConnectionResult"
	EvtError                = "error"
)

// Command 表示从客户端 WebSocket 消息中解析出的一条命令
type Command struct {
	Type         string `json:"type"`
	RoomID       string `json:"roomId,omitempty"`
	Name         string `json:"name,omitempty"`
	Row          *int   `json:"row,omitempty"` // 指针区分缺省和 0
	Col          *int   `json:"col,omitempty"`
	FriendUserID string `json:"friendUserId,omitempty"`

	InviteeConnectionID string `json:"inviteeConnectionId,omitempty"`
}

// Event 发给客户端的消息信封
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// NewEvent 构造事件
func NewEvent(eventType string, data interface{}) Event {
	return Event{Type: eventType, Data: data}
}

type Connected struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
}

type PlayerJoined struct {
	Name   string        `json:"name"`
	Symbol domain.Symbol `json:"symbol"`
	Count  int           `json:"count"`
}

type PlayerListUpdated struct {
	Members []domain.Player `json:"members"`
}

type RoomJoined struct {
	RoomID  string           `json:"roomId"`
	Name    string           `json:"name"`
	Members []domain.Player  `json:"members"`
	State   domain.GameState `json:"state"`
}

type PlayerLeft struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GameStateChanged 用于 gameStarted 和 gameReset
type GameStateChanged struct {
	State domain.GameState `json:"state"`
}

type MoveMade struct {
	Row    int              `json:"row"`
	Col    int              `json:"col"`
	Symbol domain.Symbol    `json:"symbol"`
	State  domain.GameState `json:"state"`
}

type GameEnded struct {
	Winner string           `json:"winner"`
	State  domain.GameState `json:"state"`
}

type RoomExistsResult struct {
	RoomID string `json:"roomId"`
	Exists bool   `json:"exists"`
	Count  int    `json:"count"`
	Max    int    `json:"max"`
}

// RoomSummary 房间列表中的一项
type RoomSummary struct {
	RoomID     string    `json:"roomId"`
	Name       string    `json:"name"`
	Count      int       `json:"count"`
	Max        int       `json:"max"`
	HostName   string    `json:"hostName"`
	HostUserID string    `json:"hostUserId,omitempty"`
	Started    bool      `json:"started"`
	CreatedAt  time.Time `json:"createdAt"`
}

type RoomListUpdated struct {
	Rooms []RoomSummary `json:"rooms"`
}

// HistoryEntry 一局对局，玩家以可读名称展示
type HistoryEntry struct {
	ID        uint       `json:"id"`
	RoomID    string     `json:"roomId"`
	PlayerX   string     `json:"playerX"`
	PlayerO   string     `json:"playerO"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
	Winner    string     `json:"winner"`
}

type ReceiveHistory struct {
	Histories []HistoryEntry      `json:"histories"`
	Moves     []domain.MoveRecord `json:"moves"`
}

type GameInvite struct {
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
}

type RoomCreated struct {
	RoomID string `json:"roomId"`
}

type InviteAccepted struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type InviteSuccess struct {
	RoomID      string `json:"roomId"`
	HostName    string `json:"hostName"`
	InviterName string `json:"inviterName,omitempty"` // 仅 invitePlayer 填写
}

type TestConnectionResult struct {
	ConnectionID string         `json:"connectionId"`
	RoomID       string         `json:"roomId"`
	Player       *domain.Player `json:"player"`
	IsHost       bool           `json:"isHost"`
}

// Error 发给出错调用者的错误事件
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

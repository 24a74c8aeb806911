package domain

import (
	"fmt"
	"sync"
	"time"
)

// RoomCapacity 每个房间最多两名玩家
const RoomCapacity = 2

// Player 房间成员，以连接 ID 区分（同一用户多开标签页各占一个座位）
type Player struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId,omitempty"`
	Name         string `json:"name"`
	Symbol       Symbol `json:"symbol"`
	IsHost       bool   `json:"isHost"`
}

// Room 一个两人对局房间。
//
// mu 保护成员列表、closed 标记和棋局状态的内存读写；gate 是落子串行器，
// 一次落子从校验到持久化再到广播都在 gate 内完成。gate 随 Room 一起回收。
type Room struct {
	ID        string
	Name      string
	IsPrivate bool
	CreatedAt time.Time

	mu      sync.RWMutex
	members []Player
	state   GameState
	closed  bool

	gate sync.Mutex
}

// RoomSnapshot 某一时刻房间的只读副本
type RoomSnapshot struct {
	ID         string
	Name       string
	IsPrivate  bool
	HostName   string
	HostUserID string
	Members    []Player
	State      GameState
	CreatedAt  time.Time
}

// ConnectionIDs 返回成员的连接 ID，用于房间内广播
func (s RoomSnapshot) ConnectionIDs() []string {
	ids := make([]string, 0, len(s.Members))
	for _, p := range s.Members {
		ids = append(ids, p.ConnectionID)
	}
	return ids
}

// Member 按连接 ID 查找成员
func (s RoomSnapshot) Member(connID string) (Player, bool) {
	for _, p := range s.Members {
		if p.ConnectionID == connID {
			return p, true
		}
	}
	return Player{}, false
}

// LeaveResult 成员离开后的结果
type LeaveResult struct {
	Player    Player
	NewHost   *Player
	Remaining []Player
	Emptied   bool
}

// MoveResult 一步棋被接受后的结果
type MoveResult struct {
	Player  Player
	Row     int
	Col     int
	Outcome MoveOutcome
	State   GameState
	Members []Player
}

// Ended 本步是否结束了棋局
func (m MoveResult) Ended() bool { return m.Outcome != OutcomeContinue }

// Winner 结束时的胜者（X、O 或 Draw）
func (m MoveResult) Winner() string { return m.State.Winner }

// NewRoom 创建空房间
func NewRoom(id string, private bool, now time.Time) *Room {
	return &Room{
		ID:        id,
		Name:      fmt.Sprintf("Room %s", id),
		IsPrivate: private,
		CreatedAt: now,
		state:     NewGameState(),
	}
}

// AddPlayer 原子地完成关闭检查、重复检查、容量检查和追加。
// 已在房间内的连接返回原成员，added 为 false。
func (r *Room) AddPlayer(connID, userID, name string) (p Player, added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Player{}, false, ErrRoomClosed
	}
	for _, m := range r.members {
		if m.ConnectionID == connID {
			return m, false, nil
		}
	}
	if len(r.members) >= RoomCapacity {
		return Player{}, false, ErrRoomFull
	}

	p = Player{
		ConnectionID: connID,
		UserID:       userID,
		Name:         name,
		Symbol:       r.freeSymbolLocked(),
		IsHost:       len(r.members) == 0,
	}
	r.members = append(r.members, p)
	return p, true, nil
}

// 先到先得 X；X 离开后新来的人补上 X
func (r *Room) freeSymbolLocked() Symbol {
	for _, s := range []Symbol{SymbolX, SymbolO} {
		taken := false
		for _, m := range r.members {
			if m.Symbol == s {
				taken = true
				break
			}
		}
		if !taken {
			return s
		}
	}
	return SymbolO
}

// RemovePlayer 移除成员。房主离开时由加入顺序中的下一位接任；
// 房间变空时标记为 closed，之后的 AddPlayer 都会失败。
func (r *Room) RemovePlayer(connID string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, m := range r.members {
		if m.ConnectionID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LeaveResult{}, false
	}

	res := LeaveResult{Player: r.members[idx]}
	r.members = append(r.members[:idx:idx], r.members[idx+1:]...)

	if res.Player.IsHost && len(r.members) > 0 {
		r.members[0].IsHost = true
		host := r.members[0]
		res.NewHost = &host
	}
	if len(r.members) == 0 {
		r.closed = true
		res.Emptied = true
	}
	res.Remaining = append([]Player(nil), r.members...)
	return res, true
}

// StartGame 仅房主可开始
func (r *Room) StartGame(connID string) (GameState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.memberLocked(connID)
	if !ok {
		return GameState{}, ErrNotInRoom
	}
	if !p.IsHost {
		return GameState{}, ErrNotHost
	}
	if err := r.state.Start(); err != nil {
		return GameState{}, err
	}
	return r.state, nil
}

// PlayMove 以调用者的棋子落子。调用方需持有 gate。
func (r *Room) PlayMove(connID string, row, col int) (MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.memberLocked(connID)
	if !ok {
		return MoveResult{}, ErrNotInRoom
	}
	outcome, err := r.state.Move(p.Symbol, row, col)
	if err != nil {
		return MoveResult{}, err
	}
	return MoveResult{
		Player:  p,
		Row:     row,
		Col:     col,
		Outcome: outcome,
		State:   r.state,
		Members: append([]Player(nil), r.members...),
	}, nil
}

// ResetGame 仅房主可重置
func (r *Room) ResetGame(connID string) (GameState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.memberLocked(connID)
	if !ok {
		return GameState{}, ErrNotInRoom
	}
	if !p.IsHost {
		return GameState{}, ErrNotHost
	}
	r.state.Reset()
	return r.state, nil
}

// WithGate 在房间的落子串行器内执行 fn，任何返回路径都会释放
func (r *Room) WithGate(fn func() error) error {
	r.gate.Lock()
	defer r.gate.Unlock()
	return fn()
}

// Snapshot 返回房间的只读副本
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := RoomSnapshot{
		ID:        r.ID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		Members:   append([]Player(nil), r.members...),
		State:     r.state,
		CreatedAt: r.CreatedAt,
	}
	for _, m := range r.members {
		if m.IsHost {
			s.HostName = m.Name
			s.HostUserID = m.UserID
			break
		}
	}
	return s
}

// Count 当前成员数
func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Closed 房间是否已因变空而关闭
func (r *Room) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Room) memberLocked(connID string) (Player, bool) {
	for _, m := range r.members {
		if m.ConnectionID == connID {
			return m, true
		}
	}
	return Player{}, false
}

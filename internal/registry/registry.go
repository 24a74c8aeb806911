// Package registry 持有进程内所有房间，以及连接到房间的反向索引。
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
)

// 加入时遇到刚被关闭的房间会重试；正常情况下一次重试就够
const maxJoinAttempts = 8

// RoomRegistry 房间表 + 连接反向索引。房间之间互不加锁，
// 只有顶层 map 由 mu 保护；成员变更的原子性由 Room 自己保证。
type RoomRegistry struct {
	mu        sync.RWMutex
	rooms     map[string]*domain.Room
	connRooms map[string]string

	now func() time.Time
}

// New 创建空的注册表
func New() *RoomRegistry {
	return &RoomRegistry{
		rooms:     make(map[string]*domain.Room),
		connRooms: make(map[string]string),
		now:       time.Now,
	}
}

// GetOrCreate 返回 roomID 对应的房间，不存在则创建。
// 并发调用同一个新 ID 时只会有一个 Room 被创建，created 仅对该调用者为 true。
func (r *RoomRegistry) GetOrCreate(roomID string, private bool) (room *domain.Room, created bool) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return room, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[roomID]; ok {
		return room, false
	}
	room = domain.NewRoom(roomID, private, r.now())
	r.rooms[roomID] = room
	return room, true
}

// Get 查找房间
func (r *RoomRegistry) Get(roomID string) (*domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// Exists 房间是否存在
func (r *RoomRegistry) Exists(roomID string) bool {
	_, ok := r.Get(roomID)
	return ok
}

// Remove 仅当 roomID 仍指向同一个 Room 实例时删除，返回是否删除
func (r *RoomRegistry) Remove(roomID string, room *domain.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[roomID]; ok && cur == room {
		delete(r.rooms, roomID)
		return true
	}
	return false
}

// Rooms 返回所有房间，按创建时间排序
func (r *RoomRegistry) Rooms() []*domain.Room {
	r.mu.RLock()
	rooms := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

// Len 房间数量
func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Join 找到或创建房间并加入。遇到已关闭（刚变空）的房间时先把它摘掉再重试，
// 保证不会加入一个已脱离注册表的房间。成功后登记连接的反向索引。
func (r *RoomRegistry) Join(roomID string, private bool, connID, userID, name string) (*domain.Room, domain.Player, bool, error) {
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		room, _ := r.GetOrCreate(roomID, private)
		p, added, err := room.AddPlayer(connID, userID, name)
		if errors.Is(err, domain.ErrRoomClosed) {
			r.Remove(roomID, room)
			continue
		}
		if err != nil {
			return nil, domain.Player{}, false, err
		}
		r.BindConnection(connID, roomID)
		return room, p, added, nil
	}
	return nil, domain.Player{}, false, domain.ErrRoomClosed
}

// Leave 将连接移出房间；房间变空时从注册表删除
func (r *RoomRegistry) Leave(roomID, connID string) (*domain.Room, domain.LeaveResult, error) {
	room, ok := r.Get(roomID)
	if !ok {
		r.UnbindConnection(connID, roomID)
		return nil, domain.LeaveResult{}, domain.ErrRoomNotFound
	}
	res, ok := room.RemovePlayer(connID)
	if !ok {
		return room, domain.LeaveResult{}, domain.ErrNotInRoom
	}
	if res.Emptied {
		r.Remove(roomID, room)
	}
	r.UnbindConnection(connID, roomID)
	return room, res, nil
}

// BindConnection 记录连接当前所在的房间
func (r *RoomRegistry) BindConnection(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connRooms[connID] = roomID
}

// RoomOf 查询连接所在的房间
func (r *RoomRegistry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.connRooms[connID]
	return roomID, ok
}

// UnbindConnection 仅当连接仍登记在 roomID 时删除索引
func (r *RoomRegistry) UnbindConnection(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.connRooms[connID]; ok && cur == roomID {
		delete(r.connRooms, connID)
	}
}
